package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hiveagent/hive/pkg/models"
)

// InsertTask enqueues a new task.
func (s *Store) InsertTask(ctx context.Context, title, agentID string) (*models.Task, error) {
	now := formatTime(timeNow())
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, title, status, agent_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, title, string(models.TaskQueued), agentID, now)
	if err != nil {
		return nil, translateErr(err, "insert task")
	}
	return s.GetTask(ctx, id)
}

// ClaimNextQueuedTask atomically transitions the oldest queued task to
// running and returns it, or ErrNotFound if none are queued. Runs as a
// single transaction so concurrent claimers (rejected elsewhere; this
// daemon is single-instance) cannot double-dispatch.
func (s *Store) ClaimNextQueuedTask(ctx context.Context) (*models.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, models.Wrap(models.KindStoreIO, fmt.Errorf("begin claim: %w", err))
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM tasks WHERE status = ? ORDER BY created_at ASC LIMIT 1`, string(models.TaskQueued)).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, translateErr(err, "select next queued task")
	}

	now := formatTime(timeNow())
	res, err := tx.ExecContext(ctx, `
		UPDATE tasks SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
		string(models.TaskRunning), now, id, string(models.TaskQueued))
	if err != nil {
		return nil, translateErr(err, "claim task")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return nil, models.Wrap(models.KindStoreIO, fmt.Errorf("commit claim: %w", err))
	}
	return s.GetTask(ctx, id)
}

// MarkTaskDone records a successful completion.
func (s *Store) MarkTaskDone(ctx context.Context, id, result string) error {
	now := formatTime(timeNow())
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, result = ?, completed_at = ? WHERE id = ?`,
		string(models.TaskDone), result, now, id)
	return translateErr(err, "mark task done")
}

// MarkTaskFailed records a failed completion.
func (s *Store) MarkTaskFailed(ctx context.Context, id, errMsg string) error {
	now := formatTime(timeNow())
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(models.TaskFailed), errMsg, now, id)
	return translateErr(err, "mark task failed")
}

// CancelTask transitions a still-queued task directly to failed with
// error "cancelled". No-op (returns ErrNotFound) if the task is not
// currently queued — a running task is cancelled via the worker's
// cancellation set instead (see internal/tasks).
func (s *Store) CancelTask(ctx context.Context, id string) error {
	now := formatTime(timeNow())
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, error = ?, completed_at = ? WHERE id = ? AND status = ?`,
		string(models.TaskFailed), "cancelled", now, id, string(models.TaskQueued))
	if err != nil {
		return translateErr(err, "cancel task")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetRunningTasksToQueued re-queues every running task, used once at
// boot to recover from a hard crash mid-execution.
func (s *Store) ResetRunningTasksToQueued(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, started_at = NULL WHERE status = ?`,
		string(models.TaskQueued), string(models.TaskRunning))
	if err != nil {
		return 0, translateErr(err, "reset running tasks")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ClearCompletedTasks deletes all done/failed tasks.
func (s *Store) ClearCompletedTasks(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM tasks WHERE status IN (?, ?)`, string(models.TaskDone), string(models.TaskFailed))
	if err != nil {
		return 0, translateErr(err, "clear completed tasks")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CountTasksByStatus returns a map of status -> count.
func (s *Store) CountTasksByStatus(ctx context.Context) (map[models.TaskStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, translateErr(err, "count tasks by status")
	}
	defer rows.Close()
	out := map[models.TaskStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, translateErr(err, "scan task count")
		}
		out[models.TaskStatus(status)] = n
	}
	return out, rows.Err()
}

// GetTask fetches a task by id.
func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, status, result, error, agent_id, created_at, started_at, completed_at
		FROM tasks WHERE id = ?`, id)

	var t models.Task
	var status, createdAt string
	var startedAt, completedAt sql.NullString
	if err := row.Scan(&t.ID, &t.Title, &status, &t.Result, &t.Error, &t.AgentID, &createdAt, &startedAt, &completedAt); err != nil {
		return nil, translateErr(err, "get task")
	}
	t.Status = models.TaskStatus(status)
	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, models.Wrap(models.KindStoreCorrupt, fmt.Errorf("parse task created_at: %w", err))
	}
	if startedAt.Valid {
		st, err := parseTime(startedAt.String)
		if err != nil {
			return nil, models.Wrap(models.KindStoreCorrupt, err)
		}
		t.StartedAt = &st
	}
	if completedAt.Valid {
		ct, err := parseTime(completedAt.String)
		if err != nil {
			return nil, models.Wrap(models.KindStoreCorrupt, err)
		}
		t.CompletedAt = &ct
	}
	return &t, nil
}
