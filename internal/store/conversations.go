package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hiveagent/hive/pkg/models"
)

// CreateConversation inserts a new conversation for agentID, optionally
// titled.
func (s *Store) CreateConversation(ctx context.Context, agentID, title string) (*models.Conversation, error) {
	now := formatTime(timeNow())
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, agent_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, agentID, title, now, now)
	if err != nil {
		return nil, translateErr(err, "create conversation")
	}
	return s.GetConversation(ctx, id)
}

// GetConversation fetches a conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, agent_id, title, created_at, updated_at FROM conversations WHERE id = ?`, id)
	var c models.Conversation
	var createdAt, updatedAt string
	if err := row.Scan(&c.ID, &c.AgentID, &c.Title, &createdAt, &updatedAt); err != nil {
		return nil, translateErr(err, "get conversation")
	}
	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, models.Wrap(models.KindStoreCorrupt, fmt.Errorf("parse conversation created_at: %w", err))
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, models.Wrap(models.KindStoreCorrupt, fmt.Errorf("parse conversation updated_at: %w", err))
	}
	return &c, nil
}

// ListRecentConversations returns up to limit conversations ordered by
// updated_at descending.
func (s *Store) ListRecentConversations(ctx context.Context, limit int) ([]*models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, title, created_at, updated_at FROM conversations ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, translateErr(err, "list conversations")
	}
	defer rows.Close()

	var out []*models.Conversation
	for rows.Next() {
		var c models.Conversation
		var createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.AgentID, &c.Title, &createdAt, &updatedAt); err != nil {
			return nil, translateErr(err, "scan conversation")
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, models.Wrap(models.KindStoreCorrupt, err)
		}
		if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, models.Wrap(models.KindStoreCorrupt, err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// CountConversations returns the total number of conversations, used by
// the daemon's status report.
func (s *Store) CountConversations(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&n)
	return n, translateErr(err, "count conversations")
}
