package models

import "time"

// PlatformConversation binds a messaging-platform thread to its opaque,
// serialized transcript. Unique on (Platform, ExternalID).
type PlatformConversation struct {
	ID         string    `json:"id"`
	Platform   string    `json:"platform"`
	ExternalID string    `json:"external_id"`
	Messages   string    `json:"messages"` // opaque serialized transcript
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
