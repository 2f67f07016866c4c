package models

import (
	"time"

	"github.com/google/uuid"
)

// Message roles within an analyst conversation.
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// AnalystConversation groups the question/answer exchanges of one analyst
// session so follow-up questions keep their context.
type AnalystConversation struct {
	ID        uuid.UUID `json:"id"`
	Subject   string    `json:"subject"` // authenticated caller (JWT sub or agent key name)
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AnalystMessage is one exchange in a conversation. Assistant messages
// carry the SQL that produced the answer so results are reproducible.
type AnalystMessage struct {
	ID              uuid.UUID  `json:"id"`
	ConversationID  uuid.UUID  `json:"conversation_id"`
	Role            string     `json:"role"`
	Content         string     `json:"content"`
	SQL             string     `json:"sql,omitempty"`
	VerifiedQueryID *uuid.UUID `json:"verified_query_id,omitempty"` // set when answered from a verified query
	RowCount        *int       `json:"row_count,omitempty"`
	DurationMs      *int64     `json:"duration_ms,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}
