package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hiveagent/hive/pkg/models"
)

// migration is one schema step, applied inside its own transaction and
// recorded in schema_migrations so re-opening the store is idempotent.
type migration struct {
	version int
	name    string
	up      func(tx *sql.Tx) error
}

var migrations = []migration{
	{1, "initial_schema", migration1},
	{2, "tool_call_log", migration2},
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)`); err != nil {
		return models.Wrap(models.KindStoreCorrupt, fmt.Errorf("ensure schema_migrations: %w", err))
	}

	applied := map[int]bool{}
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return models.Wrap(models.KindStoreCorrupt, fmt.Errorf("read schema_migrations: %w", err))
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return models.Wrap(models.KindStoreCorrupt, fmt.Errorf("scan schema_migrations: %w", err))
		}
		applied[v] = true
	}
	rows.Close()

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return models.Wrap(models.KindStoreIO, fmt.Errorf("begin migration %d: %w", m.version, err))
		}
		if err := m.up(tx); err != nil {
			tx.Rollback()
			return models.Wrap(models.KindStoreCorrupt, fmt.Errorf("migration %d (%s): %w", m.version, m.name, err))
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
			m.version, m.name, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
			tx.Rollback()
			return models.Wrap(models.KindStoreIO, fmt.Errorf("record migration %d: %w", m.version, err))
		}
		if err := tx.Commit(); err != nil {
			return models.Wrap(models.KindStoreIO, fmt.Errorf("commit migration %d: %w", m.version, err))
		}
	}

	return s.SetMeta(ctx, "schema_version", fmt.Sprintf("%d", migrations[len(migrations)-1].version))
}

func migration1(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE agents (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			provider    TEXT NOT NULL,
			model       TEXT NOT NULL,
			persona     TEXT NOT NULL DEFAULT '',
			agent_name  TEXT NOT NULL DEFAULT '',
			dob         TEXT NOT NULL DEFAULT '',
			location    TEXT NOT NULL DEFAULT '',
			profession  TEXT NOT NULL DEFAULT '',
			about_raw   TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		)`,
		`CREATE TABLE conversations (
			id         TEXT PRIMARY KEY,
			agent_id   TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
			title      TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX idx_conversations_agent ON conversations(agent_id)`,
		`CREATE TABLE messages (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			role            TEXT NOT NULL,
			content         TEXT NOT NULL,
			created_at      TEXT NOT NULL
		)`,
		`CREATE INDEX idx_messages_conversation ON messages(conversation_id, created_at)`,
		`CREATE TABLE knowledge (
			id         TEXT PRIMARY KEY,
			content    TEXT NOT NULL,
			pinned     INTEGER NOT NULL DEFAULT 0,
			source     TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX idx_knowledge_pinned ON knowledge(pinned)`,
		`CREATE TABLE episodes (
			id         TEXT PRIMARY KEY,
			content    TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE tasks (
			id           TEXT PRIMARY KEY,
			title        TEXT NOT NULL,
			status       TEXT NOT NULL,
			result       TEXT NOT NULL DEFAULT '',
			error        TEXT NOT NULL DEFAULT '',
			agent_id     TEXT NOT NULL DEFAULT '',
			created_at   TEXT NOT NULL,
			started_at   TEXT,
			completed_at TEXT
		)`,
		`CREATE INDEX idx_tasks_status ON tasks(status)`,
		`CREATE TABLE platform_conversations (
			id          TEXT PRIMARY KEY,
			platform    TEXT NOT NULL,
			external_id TEXT NOT NULL,
			messages    TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL,
			UNIQUE(platform, external_id)
		)`,
		`CREATE TABLE meta (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func migration2(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE TABLE tool_call_log (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		tool_name       TEXT NOT NULL,
		arguments       TEXT NOT NULL,
		result          TEXT NOT NULL,
		is_error        INTEGER NOT NULL DEFAULT 0,
		created_at      TEXT NOT NULL
	)`)
	return err
}
