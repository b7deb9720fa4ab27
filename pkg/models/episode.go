package models

import "time"

// Episode is an append-only summary of an exchange, used by the prompt
// assembler's relevance layer and wiped in bulk by /clear.
type Episode struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
