package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hiveagent/hive/pkg/models"
)

// UpsertPrimaryAgent creates the agent if none exists, or updates the
// existing primary agent (the row with the earliest created_at) in
// place. Returns the resulting row.
func (s *Store) UpsertPrimaryAgent(ctx context.Context, a models.Agent) (*models.Agent, error) {
	existing, err := s.PrimaryAgent(ctx)
	if err != nil && err != ErrNotFound {
		return nil, err
	}

	now := formatTime(timeNow())
	if existing == nil {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO agents (id, name, provider, model, persona, agent_name, dob, location, profession, about_raw, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.Name, a.Provider, a.Model, a.Persona, a.AgentName, a.DOB, a.Location, a.Profession, a.AboutRaw, now, now,
		)
		if err != nil {
			return nil, translateErr(err, "insert agent")
		}
	} else {
		a.ID = existing.ID
		_, err := s.db.ExecContext(ctx, `
			UPDATE agents SET name=?, provider=?, model=?, persona=?, agent_name=?, dob=?, location=?, profession=?, about_raw=?, updated_at=?
			WHERE id=?`,
			a.Name, a.Provider, a.Model, a.Persona, a.AgentName, a.DOB, a.Location, a.Profession, a.AboutRaw, now, a.ID,
		)
		if err != nil {
			return nil, translateErr(err, "update agent")
		}
	}
	return s.PrimaryAgent(ctx)
}

// PrimaryAgent returns the Agent row with the earliest created_at, or
// ErrNotFound if no agent has been created yet.
func (s *Store) PrimaryAgent(ctx context.Context) (*models.Agent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, provider, model, persona, agent_name, dob, location, profession, about_raw, created_at, updated_at
		FROM agents ORDER BY created_at ASC LIMIT 1`)
	return scanAgent(row)
}

// GetAgent fetches an agent by id.
func (s *Store) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, provider, model, persona, agent_name, dob, location, profession, about_raw, created_at, updated_at
		FROM agents WHERE id = ?`, id)
	return scanAgent(row)
}

func scanAgent(row *sql.Row) (*models.Agent, error) {
	var a models.Agent
	var createdAt, updatedAt string
	err := row.Scan(&a.ID, &a.Name, &a.Provider, &a.Model, &a.Persona, &a.AgentName,
		&a.DOB, &a.Location, &a.Profession, &a.AboutRaw, &createdAt, &updatedAt)
	if err != nil {
		return nil, translateErr(err, "scan agent")
	}
	a.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, models.Wrap(models.KindStoreCorrupt, fmt.Errorf("parse agent created_at: %w", err))
	}
	a.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, models.Wrap(models.KindStoreCorrupt, fmt.Errorf("parse agent updated_at: %w", err))
	}
	return &a, nil
}
