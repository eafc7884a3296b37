// WebSocket chat transport
package hub

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/frontdesk/frontdesk/pkg/service"
	"github.com/frontdesk/frontdesk/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// InboundMessage is a user chat message received from the client.
type InboundMessage struct {
	User    string `json:"user"`
	Message string `json:"message"`
}

// OutboundMessage is one chat frame pushed to the client.
type OutboundMessage struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// AssistantSender labels the assistant's outbound frames.
const AssistantSender = "Chat"

// ChatHub upgrades chat clients to WebSocket and bridges frames to the
// orchestrator. Each connection is one conversation: a fresh conversation id
// is minted on upgrade and dies with the socket.
type ChatHub struct {
	orchestrator *service.ChatOrchestrator
	upgrader     websocket.Upgrader
	logger       *slog.Logger
}

func NewChatHub(orchestrator *service.ChatOrchestrator) *ChatHub {
	return &ChatHub{
		orchestrator: orchestrator,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: utils.GetLogger(),
	}
}

// Handle is the Gin handler for GET /chat.
func (h *ChatHub) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conversationID := uuid.New().String()
	h.logger.Info("Chat client connected", "conversationID", conversationID, "remote", conn.RemoteAddr())

	// Cancelled on disconnect so an in-flight model call or backoff sleep
	// is abandoned instead of leaking a retry loop.
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	inbound := make(chan InboundMessage, 8)
	done := make(chan struct{})

	go func() {
		defer close(done)
		conn.SetReadLimit(16384)
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			var msg InboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			select {
			case inbound <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	var writeMu sync.Mutex
	send := func(msg OutboundMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(msg)
	}

	// A single worker drains inbound in arrival order, so back-to-back
	// messages of one conversation are appended and submitted strictly in
	// the order the client sent them. Turns can block through retries and
	// backoff; keeping them off the select loop keeps pings flowing.
	go func() {
		for {
			var msg InboundMessage
			select {
			case <-ctx.Done():
				return
			case msg = <-inbound:
			}
			if strings.TrimSpace(msg.Message) == "" {
				continue
			}
			sender := msg.User
			if strings.TrimSpace(sender) == "" {
				sender = "Guest"
			}
			// Echo the user's frame so all connected views of the
			// conversation stay in sync.
			if err := send(OutboundMessage{Sender: sender, Message: msg.Message}); err != nil {
				cancel()
				return
			}

			reply, err := h.orchestrator.SendChatMessage(ctx, conversationID, sender, msg.Message)
			if err != nil {
				h.logger.Warn("Turn abandoned", "conversationID", conversationID, "error", err)
				return
			}
			if reply == "" {
				continue
			}
			if err := send(OutboundMessage{Sender: AssistantSender, Message: reply}); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			h.logger.Info("Chat client disconnected", "conversationID", conversationID)
			return
		case <-ticker.C:
			writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
