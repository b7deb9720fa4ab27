// Package models defines the persisted entities of the agent runtime:
// agents, conversations, messages, knowledge, episodes, tasks,
// platform-bound conversations, and process metadata.
package models

import "time"

// Agent is a configured persona driving conversations. Exactly one Agent
// row is treated as primary at any time: the one with the earliest
// CreatedAt. Deleting an Agent cascades to its conversations.
type Agent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Persona   string    `json:"persona"`
	AgentName string    `json:"agent_name,omitempty"`

	DOB        string `json:"dob,omitempty"`
	Location   string `json:"location,omitempty"`
	Profession string `json:"profession,omitempty"`
	AboutRaw   string `json:"about_raw,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
