// Diagnostics endpoints exposing conversation transcripts
package handler

import (
	"log/slog"
	"net/http"

	"github.com/frontdesk/frontdesk/pkg/service"
	"github.com/frontdesk/frontdesk/pkg/utils"
	"github.com/gin-gonic/gin"
)

// DiagnosticsHandler exposes conversation state for operational inspection:
// the durable transcript and the live in-memory message sequence. Read-only.
type DiagnosticsHandler struct {
	history *service.HistoryService
	logger  *slog.Logger
}

func NewDiagnosticsHandler(history *service.HistoryService) *DiagnosticsHandler {
	return &DiagnosticsHandler{history: history, logger: utils.GetLogger()}
}

// Transcript handles GET /api/diagnostics/history/:conversationId
func (h *DiagnosticsHandler) Transcript(c *gin.Context) {
	conversationID := c.Param("conversationId")
	entries, err := h.history.Transcript(conversationID)
	if err != nil {
		h.logger.Error("Failed to load transcript", "error", err, "conversationID", conversationID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transcript"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Active handles GET /api/diagnostics/history/:conversationId/active
func (h *DiagnosticsHandler) Active(c *gin.Context) {
	c.JSON(http.StatusOK, h.history.Snapshot(c.Param("conversationId")))
}
