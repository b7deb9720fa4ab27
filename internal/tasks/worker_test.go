package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/hiveagent/hive/internal/orchestrator"
	"github.com/hiveagent/hive/internal/prompt"
	"github.com/hiveagent/hive/internal/provider"
	"github.com/hiveagent/hive/internal/store"
	"github.com/hiveagent/hive/pkg/models"
)

type stubProvider struct {
	name         string
	streamChunks []provider.Chunk
}

func (p *stubProvider) Name() string                   { return p.name }
func (p *stubProvider) Models() []provider.Model       { return []provider.Model{{ID: "stub-model"}} }
func (p *stubProvider) DefaultModel() string           { return "stub-model" }
func (p *stubProvider) SupportsTools() bool            { return false }
func (p *stubProvider) Ping(ctx context.Context) error { return nil }

func (p *stubProvider) StreamChat(ctx context.Context, req provider.Request) (<-chan provider.Chunk, error) {
	out := make(chan provider.Chunk, len(p.streamChunks))
	for _, c := range p.streamChunks {
		out <- c
	}
	close(out)
	return out, nil
}

func (p *stubProvider) CompleteChat(ctx context.Context, req provider.Request) (provider.CompletionResult, error) {
	return provider.CompletionResult{}, nil
}

type stubFetcher struct{}

func (f *stubFetcher) Browse(ctx context.Context, rawURL string) (string, error) { return "", nil }
func (f *stubFetcher) Search(ctx context.Context, query string) (string, error)  { return "", nil }

func newTestWorker(t *testing.T, chunks []provider.Chunk) (*Worker, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	if _, err := st.UpsertPrimaryAgent(ctx, models.Agent{Name: "Hive", Provider: "stub", Model: "stub-model", Persona: "Helpful."}); err != nil {
		t.Fatalf("seed agent: %v", err)
	}

	reg, err := provider.NewRegistry("", &stubProvider{name: "stub", streamChunks: chunks})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	assembler := prompt.New(st, t.TempDir())
	t.Cleanup(func() { assembler.Close() })
	orch := orchestrator.New(st, reg, assembler, &stubFetcher{}, nil, nil, nil)

	w := New(st, orch, nil, nil)
	return w, st
}

func TestClaimAndRunMarksTaskDone(t *testing.T) {
	w, st := newTestWorker(t, []provider.Chunk{{Text: "done "}, {Text: "work"}, {Done: true}})
	ctx := context.Background()

	task, err := st.InsertTask(ctx, "say hello", "")
	if err != nil {
		t.Fatalf("insert task: %v", err)
	}

	w.claimAndRun(ctx)

	got, err := st.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != models.TaskDone {
		t.Fatalf("status = %v, want done", got.Status)
	}
	if got.Result != "done work" {
		t.Fatalf("result = %q, want %q", got.Result, "done work")
	}
}

func TestClaimAndRunNoopWhenNoneQueued(t *testing.T) {
	w, _ := newTestWorker(t, nil)
	// Should not panic or block when the queue is empty.
	w.claimAndRun(context.Background())
}

func TestCancelQueuedTaskFailsImmediately(t *testing.T) {
	w, st := newTestWorker(t, nil)
	ctx := context.Background()

	task, err := st.InsertTask(ctx, "never runs", "")
	if err != nil {
		t.Fatalf("insert task: %v", err)
	}
	if err := w.Cancel(ctx, task.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	got, err := st.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != models.TaskFailed || got.Error != "cancelled" {
		t.Fatalf("task = %+v, want failed/cancelled", got)
	}
}

func TestCancelRunningTaskStopsStreaming(t *testing.T) {
	w, st := newTestWorker(t, []provider.Chunk{{Text: "partial"}, {Done: true}})
	ctx := context.Background()

	task, err := st.InsertTask(ctx, "long task", "")
	if err != nil {
		t.Fatalf("insert task: %v", err)
	}
	claimed, err := st.ClaimNextQueuedTask(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	w.mu.Lock()
	w.runningID = claimed.ID
	w.mu.Unlock()

	if err := w.Cancel(ctx, task.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !w.isCancelled(task.ID) {
		t.Fatal("expected task to be marked cancelled in-memory")
	}

	_, err = w.execute(ctx, claimed)
	if err != ErrCancelled {
		t.Fatalf("execute err = %v, want ErrCancelled", err)
	}
}

func TestResetRunningTasksToQueuedOnBoot(t *testing.T) {
	w, st := newTestWorker(t, nil)
	ctx := context.Background()

	task, err := st.InsertTask(ctx, "abandoned", "")
	if err != nil {
		t.Fatalf("insert task: %v", err)
	}
	if _, err := st.ClaimNextQueuedTask(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	cancel()
	w.Run(runCtx)

	got, err := st.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != models.TaskQueued {
		t.Fatalf("status = %v, want queued after reset", got.Status)
	}
}

func TestNudgeWakesLoopWithoutBlocking(t *testing.T) {
	w, _ := newTestWorker(t, nil)
	w.Nudge()
	w.Nudge() // second nudge must not block: channel is buffered size 1
	select {
	case <-w.nudge:
	case <-time.After(time.Second):
		t.Fatal("expected a pending nudge")
	}
}
