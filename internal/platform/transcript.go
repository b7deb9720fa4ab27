package platform

import (
	"encoding/json"
	"strings"
	"time"
)

// Turn is one message in a platform conversation's opaque transcript.
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

const historyWindow = 20

// decodeTranscript parses a PlatformConversation.Messages blob. An empty
// or unparseable blob decodes to no turns — first contact with a sender
// looks the same as a corrupt transcript, and both start fresh rather
// than failing the inbound message.
func decodeTranscript(messagesJSON string) []Turn {
	if strings.TrimSpace(messagesJSON) == "" {
		return nil
	}
	var turns []Turn
	if err := json.Unmarshal([]byte(messagesJSON), &turns); err != nil {
		return nil
	}
	return turns
}

func encodeTranscript(turns []Turn) (string, error) {
	data, err := json.Marshal(turns)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// historySystemAddition renders the last n turns as a system-prompt
// addition, most recent last.
func historySystemAddition(turns []Turn, n int) string {
	if len(turns) == 0 {
		return ""
	}
	start := 0
	if len(turns) > n {
		start = len(turns) - n
	}
	var b strings.Builder
	b.WriteString("Conversation history (most recent last):\n")
	for _, t := range turns[start:] {
		b.WriteString(t.Role)
		b.WriteString(": ")
		b.WriteString(t.Text)
		b.WriteString("\n")
	}
	return b.String()
}
