package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hiveagent/hive/pkg/models"
)

// AppendMessage atomically inserts the message row and advances the
// conversation's updated_at to the message's created_at.
func (s *Store) AppendMessage(ctx context.Context, conversationID string, role models.Role, content string) (*models.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, models.Wrap(models.KindStoreIO, fmt.Errorf("begin append_message: %w", err))
	}
	defer tx.Rollback()

	now := formatTime(timeNow())
	id := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, conversationID, string(role), content, now); err != nil {
		return nil, translateErr(err, "insert message")
	}
	res, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, now, conversationID)
	if err != nil {
		return nil, translateErr(err, "advance conversation")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return nil, models.Wrap(models.KindStoreIO, fmt.Errorf("commit append_message: %w", err))
	}

	createdAt, err := parseTime(now)
	if err != nil {
		return nil, models.Wrap(models.KindStoreCorrupt, err)
	}
	return &models.Message{ID: id, ConversationID: conversationID, Role: role, Content: content, CreatedAt: createdAt}, nil
}

// ListMessages returns the newest limit messages for conversationID,
// returned oldest-first.
func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM (
			SELECT id, conversation_id, role, content, created_at
			FROM messages WHERE conversation_id = ?
			ORDER BY created_at DESC LIMIT ?
		) ORDER BY created_at ASC`, conversationID, limit)
	if err != nil {
		return nil, translateErr(err, "list messages")
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]*models.Message, error) {
	var out []*models.Message
	for rows.Next() {
		var m models.Message
		var role, createdAt string
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &createdAt); err != nil {
			return nil, translateErr(err, "scan message")
		}
		m.Role = models.Role(role)
		var err error
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, models.Wrap(models.KindStoreCorrupt, err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
