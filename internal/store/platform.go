package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hiveagent/hive/pkg/models"
)

// UpsertPlatformConversation creates or updates the transcript for
// (platform, externalID).
func (s *Store) UpsertPlatformConversation(ctx context.Context, platform, externalID, messagesJSON string) (*models.PlatformConversation, error) {
	now := formatTime(timeNow())
	existing, err := s.GetPlatformConversation(ctx, platform, externalID)
	if err != nil && err != ErrNotFound {
		return nil, err
	}
	if existing == nil {
		id := uuid.NewString()
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO platform_conversations (id, platform, external_id, messages, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`, id, platform, externalID, messagesJSON, now, now)
		if err != nil {
			return nil, translateErr(err, "insert platform conversation")
		}
	} else {
		_, err := s.db.ExecContext(ctx, `
			UPDATE platform_conversations SET messages = ?, updated_at = ? WHERE id = ?`,
			messagesJSON, now, existing.ID)
		if err != nil {
			return nil, translateErr(err, "update platform conversation")
		}
	}
	return s.GetPlatformConversation(ctx, platform, externalID)
}

// GetPlatformConversation fetches the transcript for (platform,
// externalID), returning ErrNotFound on first contact.
func (s *Store) GetPlatformConversation(ctx context.Context, platform, externalID string) (*models.PlatformConversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, platform, external_id, messages, created_at, updated_at
		FROM platform_conversations WHERE platform = ? AND external_id = ?`, platform, externalID)
	var pc models.PlatformConversation
	var createdAt, updatedAt string
	err := row.Scan(&pc.ID, &pc.Platform, &pc.ExternalID, &pc.Messages, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, translateErr(err, "get platform conversation")
	}
	if pc.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, models.Wrap(models.KindStoreCorrupt, fmt.Errorf("parse platform conversation created_at: %w", err))
	}
	if pc.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, models.Wrap(models.KindStoreCorrupt, fmt.Errorf("parse platform conversation updated_at: %w", err))
	}
	return &pc, nil
}
