// Package tasks runs the single-task-at-a-time background worker: claim
// the oldest queued task, run it to completion through the orchestrator,
// and record the result. At most one task is ever running per daemon
// process.
package tasks

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hiveagent/hive/internal/orchestrator"
	"github.com/hiveagent/hive/internal/store"
	"github.com/hiveagent/hive/internal/tracing"
	"github.com/hiveagent/hive/pkg/models"
)

const pollInterval = 10 * time.Second

// ErrCancelled is the error recorded against a task cancelled mid-run.
var ErrCancelled = errors.New("cancelled")

// Worker polls the store for queued tasks and runs them one at a time
// through the orchestrator, checking for cancellation between streaming
// tokens.
type Worker struct {
	store  *store.Store
	logger *slog.Logger
	tracer *tracing.Tracer

	nudge chan struct{}

	mu           sync.Mutex
	orchestrator *orchestrator.Orchestrator
	cancelled    map[string]bool
	runningID    string
}

// New constructs a task Worker. tracer may be nil, in which case a no-op
// tracer is used (no OTLP endpoint configured).
func New(st *store.Store, orch *orchestrator.Orchestrator, logger *slog.Logger, tracer *tracing.Tracer) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer, _ = tracing.New(tracing.Config{ServiceName: "hived-tasks"})
	}
	return &Worker{
		store:        st,
		orchestrator: orch,
		logger:       logger.With("component", "tasks"),
		tracer:       tracer,
		nudge:        make(chan struct{}, 1),
		cancelled:    make(map[string]bool),
	}
}

// SetOrchestrator rebinds the orchestrator the worker dispatches task runs
// to. The daemon calls this when the provider is lazily (re)initialized
// after a boot-time construction failure.
func (w *Worker) SetOrchestrator(o *orchestrator.Orchestrator) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.orchestrator = o
}

func (w *Worker) getOrchestrator() *orchestrator.Orchestrator {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.orchestrator
}

// Nudge wakes the worker loop immediately instead of waiting for the next
// poll tick — called after a task is enqueued.
func (w *Worker) Nudge() {
	select {
	case w.nudge <- struct{}{}:
	default:
	}
}

// Cancel marks id for cancellation. If it is still queued, this is a
// direct DB transition to failed. If it is the task currently running,
// the cancellation is recorded in-memory and observed between streaming
// tokens on the worker's next check.
func (w *Worker) Cancel(ctx context.Context, id string) error {
	if err := w.store.CancelTask(ctx, id); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	w.mu.Lock()
	if w.runningID == id {
		w.cancelled[id] = true
	}
	w.mu.Unlock()
	return nil
}

// ActiveTaskID returns the id of the task currently running, or "" if the
// worker is idle — reported by the daemon's `status` IPC command.
func (w *Worker) ActiveTaskID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runningID
}

func (w *Worker) isCancelled(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancelled[id]
}

// Run recovers any tasks abandoned by a crash and then loops until ctx is
// cancelled, claiming and executing one task at a time.
func (w *Worker) Run(ctx context.Context) {
	if n, err := w.store.ResetRunningTasksToQueued(ctx); err != nil {
		w.logger.Error("reset running tasks to queued", "error", err)
	} else if n > 0 {
		w.logger.Info("re-queued tasks abandoned by a prior crash", "count", n)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		w.claimAndRun(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.nudge:
		}
	}
}

func (w *Worker) claimAndRun(ctx context.Context) {
	if w.getOrchestrator() == nil {
		// No provider available yet (construction failed at boot and hasn't
		// been retried successfully). Leave queued tasks queued rather than
		// claiming one we cannot run.
		return
	}

	task, err := w.store.ClaimNextQueuedTask(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			w.logger.Error("claim next queued task", "error", err)
		}
		return
	}

	w.mu.Lock()
	w.runningID = task.ID
	w.mu.Unlock()
	activeTaskGauge.Set(1)
	defer func() {
		w.mu.Lock()
		delete(w.cancelled, task.ID)
		w.runningID = ""
		w.mu.Unlock()
		activeTaskGauge.Set(0)
	}()

	result, err := w.execute(ctx, task)
	if err != nil {
		tasksTotal.WithLabelValues(outcomeLabel(err)).Inc()
		if err := w.store.MarkTaskFailed(ctx, task.ID, err.Error()); err != nil {
			w.logger.Error("mark task failed", "task_id", task.ID, "error", err)
		}
		return
	}
	tasksTotal.WithLabelValues("done").Inc()
	if err := w.store.MarkTaskDone(ctx, task.ID, result); err != nil {
		w.logger.Error("mark task done", "task_id", task.ID, "error", err)
	}
}

func outcomeLabel(err error) string {
	if errors.Is(err, ErrCancelled) {
		return "cancelled"
	}
	return "failed"
}

// execute runs one task's title as a chat turn against the orchestrator,
// checking the cancellation set on every streamed token.
func (w *Worker) execute(ctx context.Context, task *models.Task) (string, error) {
	ctx, span := w.tracer.TraceTaskExecution(ctx, task.ID)
	defer span.End()

	// Tasks run as stateless, one-shot chat turns: no ConversationID, so
	// each gets its own fresh conversation row rather than joining history.
	events, err := w.getOrchestrator().Chat(ctx, task.Title, orchestrator.Options{})
	if err != nil {
		w.tracer.RecordError(span, err)
		return "", err
	}

	var b strings.Builder
	for ev := range events {
		if w.isCancelled(task.ID) {
			w.tracer.RecordError(span, ErrCancelled)
			return "", ErrCancelled
		}
		if ev.Err != nil {
			w.tracer.RecordError(span, ev.Err)
			return b.String(), ev.Err
		}
		b.WriteString(ev.Token)
		if ev.Done {
			break
		}
	}
	return b.String(), nil
}
