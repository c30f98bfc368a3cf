// internal/models/chat.go
package models

import "time"

const (
	ChatRoleUser = "user"
	ChatRoleBot  = "bot"
)

// ChatMessage is the event published for every user message and bot reply.
type ChatMessage struct {
	EventID   string                 `json:"eventId"`
	SessionID string                 `json:"sessionId"`
	UserID    string                 `json:"userId,omitempty"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Intent    string                 `json:"intent,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}
