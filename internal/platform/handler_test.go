package platform

import (
	"context"
	"testing"
	"time"

	"github.com/hiveagent/hive/internal/export"
	"github.com/hiveagent/hive/internal/integrations"
	"github.com/hiveagent/hive/internal/orchestrator"
	"github.com/hiveagent/hive/internal/prompt"
	"github.com/hiveagent/hive/internal/provider"
	"github.com/hiveagent/hive/internal/store"
	"github.com/hiveagent/hive/pkg/models"
)

type stubProvider struct {
	streamChunks []provider.Chunk
}

func (p *stubProvider) Name() string                   { return "stub" }
func (p *stubProvider) Models() []provider.Model        { return []provider.Model{{ID: "stub-model"}} }
func (p *stubProvider) DefaultModel() string            { return "stub-model" }
func (p *stubProvider) SupportsTools() bool             { return false }
func (p *stubProvider) Ping(ctx context.Context) error  { return nil }
func (p *stubProvider) CompleteChat(ctx context.Context, req provider.Request) (provider.CompletionResult, error) {
	return provider.CompletionResult{}, nil
}
func (p *stubProvider) StreamChat(ctx context.Context, req provider.Request) (<-chan provider.Chunk, error) {
	out := make(chan provider.Chunk, len(p.streamChunks))
	for _, c := range p.streamChunks {
		out <- c
	}
	close(out)
	return out, nil
}

type stubFetcher struct{}

func (f *stubFetcher) Browse(ctx context.Context, rawURL string) (string, error) { return "", nil }
func (f *stubFetcher) Search(ctx context.Context, query string) (string, error)  { return "", nil }

func newTestHandler(t *testing.T) (*Handler, *store.Store) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if _, err := st.UpsertPrimaryAgent(ctx, models.Agent{Name: "Hive", Provider: "stub", Model: "stub-model", Persona: "Helpful."}); err != nil {
		t.Fatalf("seed agent: %v", err)
	}

	p := &stubProvider{streamChunks: []provider.Chunk{{Text: "hi there"}, {Done: true}}}
	reg, err := provider.NewRegistry("", p)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	assembler := prompt.New(st, t.TempDir())
	t.Cleanup(func() { assembler.Close() })
	orch := orchestrator.New(st, reg, assembler, &stubFetcher{}, nil, nil, nil)

	integ := integrations.New(t.TempDir())
	home := t.TempDir()
	exporter := export.New(export.Config{HomeDir: home}, nil)
	h := New(st, integ, orch, nil, nil, exporter, home, 0, nil)
	return h, st
}

func TestHandleRejectsUnauthorizedSender(t *testing.T) {
	h, _ := newTestHandler(t)
	out := h.Handle(context.Background(), InboundMessage{Platform: "discord", From: "u1", Text: "hello", MessageID: "m1", Timestamp: time.Now()})
	if out.Text == "" || out.Text == "hi there" {
		t.Fatalf("expected a not-authorized reply, got %q", out.Text)
	}

	pending, err := h.integrations.PendingEntries()
	if err != nil {
		t.Fatalf("pending entries: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("len(pending) = %d, want 1", len(pending))
	}
}

func TestHandleRepliesForAuthorizedSender(t *testing.T) {
	h, _ := newTestHandler(t)
	ctx := context.Background()
	if err := h.integrations.AddAuthorized("discord", "u1"); err != nil {
		t.Fatalf("add authorized: %v", err)
	}

	out := h.Handle(ctx, InboundMessage{Platform: "discord", From: "u1", Text: "hello", MessageID: "m1", Timestamp: time.Now()})
	if out.Text != "hi there" {
		t.Fatalf("text = %q, want %q", out.Text, "hi there")
	}
	if out.To != "u1" || out.ReplyTo != "m1" {
		t.Fatalf("out = %+v", out)
	}

	pc, err := h.store.GetPlatformConversation(ctx, "discord", "u1")
	if err != nil {
		t.Fatalf("get platform conversation: %v", err)
	}
	turns := decodeTranscript(pc.Messages)
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d, want 2", len(turns))
	}
}

func TestHandleEnforcesRateLimit(t *testing.T) {
	h, _ := newTestHandler(t)
	ctx := context.Background()
	if err := h.integrations.AddAuthorized("discord", "u1"); err != nil {
		t.Fatalf("add authorized: %v", err)
	}

	now := time.Now()
	first := h.Handle(ctx, InboundMessage{Platform: "discord", From: "u1", Text: "one", MessageID: "m1", Timestamp: now})
	if first.Text != "hi there" {
		t.Fatalf("first reply = %q", first.Text)
	}

	second := h.Handle(ctx, InboundMessage{Platform: "discord", From: "u1", Text: "two", MessageID: "m2", Timestamp: now.Add(time.Second)})
	if second.Text == "hi there" {
		t.Fatal("expected the second message within the rate-limit window to be rejected")
	}
}

func TestHandleReusesConversationAcrossTurns(t *testing.T) {
	h, st := newTestHandler(t)
	ctx := context.Background()
	if err := h.integrations.AddAuthorized("discord", "u1"); err != nil {
		t.Fatalf("add authorized: %v", err)
	}

	now := time.Now()
	h.Handle(ctx, InboundMessage{Platform: "discord", From: "u1", Text: "one", MessageID: "m1", Timestamp: now})
	h.Handle(ctx, InboundMessage{Platform: "discord", From: "u1", Text: "two", MessageID: "m2", Timestamp: now.Add(4 * time.Second)})

	convs, err := st.ListRecentConversations(ctx, 10)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("len(conversations) = %d, want 1 (same sender should reuse one conversation)", len(convs))
	}
}
