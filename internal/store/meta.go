package store

import (
	"context"

	"github.com/google/uuid"
)

// GetMeta returns the value for key, and false if the key is unset.
func (s *Store) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if terr := translateErr(err, "get meta"); terr == ErrNotFound {
			return "", false, nil
		} else {
			return "", false, terr
		}
	}
	return value, true, nil
}

func newID() string { return uuid.NewString() }

// SetMeta upserts key=value, stamping updated_at.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	now := formatTime(timeNow())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	return translateErr(err, "set meta")
}

// RecordToolCall inserts a ToolCallLog row (supplemental audit trail for
// the orchestrator's tool loop).
func (s *Store) RecordToolCall(ctx context.Context, conversationID, toolName, arguments, result string, isError bool) error {
	now := formatTime(timeNow())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_call_log (id, conversation_id, tool_name, arguments, result, is_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		newID(), conversationID, toolName, arguments, result, boolToInt(isError), now)
	return translateErr(err, "record tool call")
}

// CountToolCalls returns how many tool_call_log rows exist for
// conversationID, used by callers that need to confirm the audit trail is
// actually being written.
func (s *Store) CountToolCalls(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tool_call_log WHERE conversation_id = ?`, conversationID).Scan(&n)
	if err != nil {
		return 0, translateErr(err, "count tool calls")
	}
	return n, nil
}
