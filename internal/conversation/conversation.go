// Package conversation persists chat sessions and their turns in
// PostgreSQL. A conversation is addressed by a caller-supplied session
// ID; turns are appended, never rewritten.
package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Message roles as stored in the messages table.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Conversation is a chat session and its metadata.
type Conversation struct {
	ID            uuid.UUID `json:"conversation_id"`
	SessionID     string    `json:"session_id"`
	UserID        string    `json:"user_id,omitempty"`
	Title         string    `json:"title,omitempty"`
	TotalMessages int       `json:"total_messages"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	LastActivity  time.Time `json:"last_activity"`
}

// Message is a single turn in a conversation. The agent metadata fields
// (Intent, Success, token counts, latency, error) are populated on model
// turns only.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Intent         string    `json:"intent,omitempty"`
	Success        bool      `json:"success"`
	InputTokens    int       `json:"input_tokens,omitempty"`
	OutputTokens   int       `json:"output_tokens,omitempty"`
	ResponseTimeMS int64     `json:"response_time_ms,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
