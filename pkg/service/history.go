// Conversation history manager - live message log per conversation id
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/frontdesk/frontdesk/pkg/db"
	"github.com/frontdesk/frontdesk/pkg/models"
	"github.com/frontdesk/frontdesk/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// conversation is one live conversation's state. mu is the turn lock, held
// by the orchestrator for a full turn. msgMu guards the message slice and
// lastActive for short reads, so diagnostics never wait out a turn.
type conversation struct {
	mu         sync.Mutex
	msgMu      sync.Mutex
	messages   []*schema.Message
	lastActive time.Time
}

// HistoryService owns the ordered message log for each conversation id. The
// live log is kept in memory for the duration of a conversation and mirrored,
// message by message, into the durable transcript table. The durable log is
// write-only from the engine's perspective; it is read back only by the
// diagnostics API, never to rebuild in-memory state.
type HistoryService struct {
	db     *gorm.DB
	logger *slog.Logger
	ttl    time.Duration

	mu            sync.Mutex
	conversations map[string]*conversation
}

// NewHistoryService creates a history service. ttl bounds how long an idle
// conversation stays cached; see StartJanitor.
func NewHistoryService(gdb *gorm.DB, ttl time.Duration) *HistoryService {
	return &HistoryService{
		db:            gdb,
		logger:        utils.GetLogger(),
		ttl:           ttl,
		conversations: make(map[string]*conversation),
	}
}

// Lock serializes turn processing for one conversation id. No two turns of
// the same conversation may be in flight at once; the orchestrator holds the
// lock for a full turn. Distinct conversation ids proceed independently.
//
// The janitor may evict an idle conversation between the map lookup and the
// acquisition, so after locking we confirm the map still holds the locked
// object and retry against the live entry if not. While a conversation is
// locked the janitor cannot evict it, so the entry is then stable until
// Unlock.
func (s *HistoryService) Lock(conversationID string) {
	for {
		conv := s.get(conversationID)
		conv.mu.Lock()
		s.mu.Lock()
		current := s.conversations[conversationID]
		s.mu.Unlock()
		if current == conv {
			return
		}
		conv.mu.Unlock()
	}
}

// Unlock releases the per-conversation turn lock.
func (s *HistoryService) Unlock(conversationID string) {
	s.get(conversationID).mu.Unlock()
}

// GetOrCreate returns the ordered message sequence for the conversation,
// seeding a new conversation with the receptionist system prompt. The system
// prompt is also mirrored into the durable transcript.
func (s *HistoryService) GetOrCreate(conversationID string) []*schema.Message {
	conv := s.get(conversationID)
	conv.msgMu.Lock()
	if len(conv.messages) == 0 {
		prompt := receptionistPrompt(time.Now())
		conv.messages = append(conv.messages, schema.SystemMessage(prompt))
		defer s.record(conversationID, prompt, db.SenderSystem)
	}
	conv.lastActive = time.Now()
	messages := conv.messages
	conv.msgMu.Unlock()
	return messages
}

// Append adds a message to the live sequence and best-effort writes a
// durable transcript record. It is the only mutator of the sequence.
func (s *HistoryService) Append(conversationID string, msg *schema.Message, sentBy string) {
	conv := s.get(conversationID)
	conv.msgMu.Lock()
	conv.messages = append(conv.messages, msg)
	conv.lastActive = time.Now()
	conv.msgMu.Unlock()

	text := msg.Content
	if len(msg.ToolCalls) > 0 {
		directive, err := json.Marshal(msg.ToolCalls)
		if err == nil {
			text = fmt.Sprintf("%sFunction: %s", text, directive)
		}
	}
	s.record(conversationID, text, sentBy)
}

// RemoveLast drops the most recently appended message. The orchestrator uses
// it to roll back a user turn that provoked an unrecoverable model error, so
// the next attempt does not resubmit a contaminated sequence. The durable
// transcript keeps its record; it is an audit log, not a replayed state.
func (s *HistoryService) RemoveLast(conversationID string) {
	conv := s.get(conversationID)
	conv.msgMu.Lock()
	defer conv.msgMu.Unlock()
	if len(conv.messages) == 0 {
		return
	}
	conv.messages = conv.messages[:len(conv.messages)-1]
	conv.lastActive = time.Now()
}

// Len reports the current number of live messages for the conversation.
func (s *HistoryService) Len(conversationID string) int {
	conv := s.get(conversationID)
	conv.msgMu.Lock()
	defer conv.msgMu.Unlock()
	return len(conv.messages)
}

// Snapshot returns a copy of the live sequence for diagnostics.
func (s *HistoryService) Snapshot(conversationID string) []models.ActiveMessage {
	conv := s.get(conversationID)
	conv.msgMu.Lock()
	defer conv.msgMu.Unlock()
	out := make([]models.ActiveMessage, 0, len(conv.messages))
	for _, msg := range conv.messages {
		out = append(out, models.ActiveMessage{
			Role:     string(msg.Role),
			Content:  msg.Content,
			ToolName: msg.ToolName,
		})
	}
	return out
}

// Transcript returns the durable log for a conversation in append order.
func (s *HistoryService) Transcript(conversationID string) ([]models.TranscriptEntry, error) {
	var entries []models.TranscriptEntry
	if err := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// StartJanitor evicts conversations idle beyond the TTL, keeping the cache
// finite while leaving active conversations untouched.
func (s *HistoryService) StartJanitor(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(s.ttl / 4)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.evictIdle(time.Now())
			}
		}
	}()
}

func (s *HistoryService) evictIdle(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, conv := range s.conversations {
		// Skip conversations with a turn in flight. The delete happens
		// while the turn lock is still held, so a pending Lock on this
		// conversation observes the removal when it re-validates.
		if !conv.mu.TryLock() {
			continue
		}
		conv.msgMu.Lock()
		idle := now.Sub(conv.lastActive)
		conv.msgMu.Unlock()
		if idle > s.ttl {
			delete(s.conversations, id)
			s.logger.Info("Evicted idle conversation", "conversationID", id, "idle", idle)
		}
		conv.mu.Unlock()
	}
}

func (s *HistoryService) get(conversationID string) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		conv = &conversation{lastActive: time.Now()}
		s.conversations[conversationID] = conv
	}
	return conv
}

// record best-effort writes one durable transcript row. Failures are logged
// and swallowed; the live conversation must not be disturbed by audit-log
// trouble.
func (s *HistoryService) record(conversationID, message, sentBy string) {
	entry := &models.TranscriptEntry{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Message:        message,
		SentBy:         sentBy,
	}
	if err := s.db.Create(entry).Error; err != nil {
		s.logger.Error("Failed to write transcript entry", "error", err, "conversationID", conversationID)
	}
}

// receptionistPrompt is the system instruction seeding every conversation.
// It carries the current date-time and timezone so the model can resolve
// relative dates, and the booking policies the assistant must follow.
func receptionistPrompt(now time.Time) string {
	zone, _ := now.Zone()
	return fmt.Sprintf(
		"Answer questions as a receptionist that handles bookings at the office. "+
			"Today's DateTime is %s. "+
			"Don't make assumptions about what values to plug into functions. Ask for clarification. "+
			"If you do not know the user's name or how many people are attending be sure to ask. "+
			"Before trying to book an appointment always display all parameters back to the user and ask for confirmation. "+
			"You should always check for appointment availability before booking. "+
			"If the appointment is unavailable do not book the appointment. "+
			"If you want to book an appointment you should always confirm the details to the user and send them an HTML link. "+
			"You cannot book any appointments in the past. "+
			"If clarifying dates use the ISO 8601 date format translated to the user's local time zone. "+
			"The user's timezone is %s. Always use the local time zone.",
		now.UTC().Format(time.RFC3339), zone)
}
