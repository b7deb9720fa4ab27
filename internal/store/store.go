// Package store implements the embedded relational store: schema,
// migrations, and typed accessors over one SQLite file per daemon home
// directory.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/hiveagent/hive/pkg/models"
)

// Store wraps the embedded database handle and exposes typed accessors.
// All writes serialize through the handle's own transaction discipline;
// integration adapters, the task worker, the heartbeat, the orchestrator,
// and the IPC server may all share one Store.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates the parent directory if missing, opens (creating if
// necessary) the SQLite file at path, applies the required pragmas, and
// runs any migrations not yet recorded. Fails with a models.KindStoreIO
// error if the path is unreadable or WAL cannot be enabled.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, models.Wrap(models.KindStoreIO, fmt.Errorf("create store directory: %w", err))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, models.Wrap(models.KindStoreIO, fmt.Errorf("open store: %w", err))
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite + WAL: single writer connection avoids SQLITE_BUSY churn

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, models.Wrap(models.KindStoreIO, fmt.Errorf("ping store: %w", err))
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, models.Wrap(models.KindStoreIO, fmt.Errorf("apply %q: %w", pragma, err))
		}
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// translateErr maps sql.ErrNoRows to ErrNotFound and wraps every other
// error as models.KindStoreIO, prefixed with op.
func translateErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	return models.Wrap(models.KindStoreIO, fmt.Errorf("%s: %w", op, err))
}

// ErrNotFound is returned by typed accessors when a row does not exist.
// It is a sentinel, compared with errors.Is, not a models.Error: "not
// found" is an expected outcome for several accessors (claim_next_queued
// returning none, get_platform_conversation on first contact), not a
// store failure.
var ErrNotFound = fmt.Errorf("store: not found")
