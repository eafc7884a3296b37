// Database models for conversation transcripts
package db

import "time"

// TranscriptEntry is one durably logged conversation turn. The engine only
// ever appends; the in-memory history is never rebuilt from this table. It
// exists for operational inspection through the diagnostics API.
type TranscriptEntry struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	ConversationID string    `json:"conversation_id" gorm:"index;size:64;not null"`
	Message        string    `json:"message" gorm:"type:text"`
	SentBy         string    `json:"sent_by" gorm:"size:120;not null"`
	CreatedAt      time.Time `json:"created_at"`
}

func (TranscriptEntry) TableName() string {
	return "transcript_entries"
}

// Sender labels recorded in transcript entries.
const (
	SenderSystem    = "System"
	SenderUser      = "User"
	SenderAssistant = "Assistant"
	SenderFunction  = "Function"
)
