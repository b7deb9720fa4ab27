package models

import "time"

// Message is one append-only row in a Conversation. Ordering within a
// conversation is by CreatedAt ascending.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
