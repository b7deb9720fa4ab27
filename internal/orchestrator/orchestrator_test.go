package orchestrator

import (
	"context"
	"testing"

	"github.com/hiveagent/hive/internal/prompt"
	"github.com/hiveagent/hive/internal/provider"
	"github.com/hiveagent/hive/internal/store"
	"github.com/hiveagent/hive/pkg/models"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// stubProvider is a minimal Provider test double. Its StreamChat and
// CompleteChat behavior is configured per test.
type stubProvider struct {
	name          string
	supportsTools bool
	streamChunks  []provider.Chunk
	streamErr     error
	completions   []provider.CompletionResult
	completeCalls int
}

func (p *stubProvider) Name() string                   { return p.name }
func (p *stubProvider) Models() []provider.Model       { return []provider.Model{{ID: "stub-model"}} }
func (p *stubProvider) DefaultModel() string           { return "stub-model" }
func (p *stubProvider) SupportsTools() bool            { return p.supportsTools }
func (p *stubProvider) Ping(ctx context.Context) error { return nil }

func (p *stubProvider) StreamChat(ctx context.Context, req provider.Request) (<-chan provider.Chunk, error) {
	if p.streamErr != nil {
		return nil, p.streamErr
	}
	out := make(chan provider.Chunk, len(p.streamChunks))
	for _, c := range p.streamChunks {
		out <- c
	}
	close(out)
	return out, nil
}

func (p *stubProvider) CompleteChat(ctx context.Context, req provider.Request) (provider.CompletionResult, error) {
	idx := p.completeCalls
	p.completeCalls++
	if idx >= len(p.completions) {
		return provider.CompletionResult{}, nil
	}
	return p.completions[idx], nil
}

// stubFetcher is a WebFetcher test double.
type stubFetcher struct {
	searchResult string
	searchErr    error
}

func (f *stubFetcher) Browse(ctx context.Context, rawURL string) (string, error) {
	return "", nil
}

func (f *stubFetcher) Search(ctx context.Context, query string) (string, error) {
	return f.searchResult, f.searchErr
}

func newTestOrchestrator(t *testing.T, p provider.Provider) (*Orchestrator, *store.Store) {
	t.Helper()
	st := openTestStore(t)
	ctx := context.Background()
	if _, err := st.UpsertPrimaryAgent(ctx, models.Agent{Name: "Hive", Provider: "stub", Model: "stub-model", Persona: "Helpful assistant."}); err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	reg, err := provider.NewRegistry("", p)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	assembler := prompt.New(st, t.TempDir())
	t.Cleanup(func() { assembler.Close() })
	o := New(st, reg, assembler, &stubFetcher{searchResult: "no results"}, nil, nil, nil)
	return o, st
}

func drain(ch <-chan Event) []Event {
	var events []Event
	for e := range ch {
		events = append(events, e)
	}
	return events
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	p := &stubProvider{name: "stub"}
	o, _ := newTestOrchestrator(t, p)

	_, err := o.Chat(context.Background(), "   ", Options{})
	if !models.IsKind(err, models.KindInvalidInput) {
		t.Fatalf("err = %v, want KindInvalidInput", err)
	}
}

func TestChatStreamsDirectWhenToolsUnsupported(t *testing.T) {
	p := &stubProvider{
		name: "stub",
		streamChunks: []provider.Chunk{
			{Text: "hello "},
			{Text: "there"},
			{Done: true},
		},
	}
	o, _ := newTestOrchestrator(t, p)

	ch, err := o.Chat(context.Background(), "hi", Options{})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	events := drain(ch)

	var tokens string
	sawDone := false
	for _, e := range events {
		if e.Err != nil {
			t.Fatalf("unexpected error event: %v", e.Err)
		}
		tokens += e.Token
		if e.Done {
			sawDone = true
		}
	}
	if tokens != "hello there" {
		t.Fatalf("tokens = %q, want %q", tokens, "hello there")
	}
	if !sawDone {
		t.Fatal("expected a Done event")
	}
}

func TestChatRunsToolLoopWhenToolsSupported(t *testing.T) {
	p := &stubProvider{
		name:          "stub",
		supportsTools: true,
		completions: []provider.CompletionResult{
			{ToolCalls: []provider.ToolCall{{ID: "call_1", Name: "web_search", Arguments: `{"query":"weather today"}`}}},
			{Content: "It's sunny."},
		},
	}
	o, st := newTestOrchestrator(t, p)

	ch, err := o.Chat(context.Background(), "what's the weather", Options{})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	events := drain(ch)

	var tokens string
	for _, e := range events {
		if e.Err != nil {
			t.Fatalf("unexpected error event: %v", e.Err)
		}
		tokens += e.Token
	}
	if tokens != "It's sunny." {
		t.Fatalf("tokens = %q, want %q", tokens, "It's sunny.")
	}
	if p.completeCalls != 2 {
		t.Fatalf("completeCalls = %d, want 2", p.completeCalls)
	}

	convs, err := st.ListRecentConversations(context.Background(), 10)
	if err != nil || len(convs) != 1 {
		t.Fatalf("ListRecentConversations() = %v, %v, want exactly 1 conversation", convs, err)
	}
	count, err := st.CountToolCalls(context.Background(), convs[0].ID)
	if err != nil {
		t.Fatalf("CountToolCalls: %v", err)
	}
	if count != 1 {
		t.Fatalf("tool_call_log rows = %d, want 1 (the single web_search call)", count)
	}
}

func TestChatRejectsConversationOwnedByAnotherAgent(t *testing.T) {
	p := &stubProvider{name: "stub"}
	o, st := newTestOrchestrator(t, p)
	ctx := context.Background()

	other, err := st.UpsertPrimaryAgent(ctx, models.Agent{Name: "Other", Provider: "stub", Model: "stub-model"})
	if err != nil {
		t.Fatalf("seed other agent: %v", err)
	}
	conv, err := st.CreateConversation(ctx, other.ID, "")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	_, err = o.Chat(ctx, "hello", Options{ConversationID: conv.ID})
	if !models.IsKind(err, models.KindAuthMismatch) {
		t.Fatalf("err = %v, want KindAuthMismatch", err)
	}
}

func TestChatAppliesLegacyEpisodeTruncation(t *testing.T) {
	p := &stubProvider{
		name:         "stub",
		streamChunks: []provider.Chunk{{Text: "ok"}, {Done: true}},
	}
	o, st := newTestOrchestrator(t, p)

	long := ""
	for i := 0; i < legacyEpisodeMaxChar+500; i++ {
		long += "a"
	}
	ch, err := o.Chat(context.Background(), long, Options{})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	drain(ch)

	episodes, err := st.FindRelevantEpisodes(context.Background(), "a", 10)
	if err != nil {
		t.Fatalf("find episodes: %v", err)
	}
	if len(episodes) == 0 {
		t.Fatal("expected a legacy episode to be written")
	}
	if len(episodes[0].Content) > legacyEpisodeMaxChar {
		t.Fatalf("episode content length = %d, want <= %d", len(episodes[0].Content), legacyEpisodeMaxChar)
	}
}
