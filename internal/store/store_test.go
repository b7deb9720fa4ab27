package store

import (
	"context"
	"testing"

	"github.com/hiveagent/hive/pkg/models"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrationsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	if err := s.migrate(ctx); err != nil {
		t.Fatalf("re-migrate: %v", err)
	}
	v, ok, err := s.GetMeta(ctx, "schema_version")
	if err != nil || !ok {
		t.Fatalf("schema_version not set: %v %v", ok, err)
	}
	if v != "2" {
		t.Fatalf("schema_version = %q, want 2", v)
	}
}

func TestAppendMessageAdvancesConversation(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	agent, err := s.UpsertPrimaryAgent(ctx, models.Agent{Name: "Hive", Provider: "openai", Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("upsert agent: %v", err)
	}
	conv, err := s.CreateConversation(ctx, agent.ID, "")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	msg, err := s.AppendMessage(ctx, conv.ID, models.RoleUser, "hello")
	if err != nil {
		t.Fatalf("append message: %v", err)
	}
	got, err := s.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if !got.UpdatedAt.Equal(msg.CreatedAt) {
		t.Fatalf("conversation.UpdatedAt = %v, want %v", got.UpdatedAt, msg.CreatedAt)
	}
}

func TestClaimNextQueuedTaskIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	if _, err := s.InsertTask(ctx, "echo hello", ""); err != nil {
		t.Fatalf("insert task: %v", err)
	}
	claimed, err := s.ClaimNextQueuedTask(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Status != models.TaskRunning {
		t.Fatalf("status = %s, want running", claimed.Status)
	}
	if _, err := s.ClaimNextQueuedTask(ctx); err != ErrNotFound {
		t.Fatalf("second claim err = %v, want ErrNotFound", err)
	}
}

func TestCancelTaskBeforeDispatch(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	task, err := s.InsertTask(ctx, "echo hello", "")
	if err != nil {
		t.Fatalf("insert task: %v", err)
	}
	if err := s.CancelTask(ctx, task.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != models.TaskFailed || got.Error != "cancelled" {
		t.Fatalf("task = %+v, want failed/cancelled", got)
	}
}

func TestResetRunningTasksToQueued(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	if _, err := s.InsertTask(ctx, "echo hello", ""); err != nil {
		t.Fatalf("insert task: %v", err)
	}
	if _, err := s.ClaimNextQueuedTask(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	n, err := s.ResetRunningTasksToQueued(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n != 1 {
		t.Fatalf("reset count = %d, want 1", n)
	}
	counts, err := s.CountTasksByStatus(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[models.TaskQueued] != 1 {
		t.Fatalf("queued count = %d, want 1", counts[models.TaskQueued])
	}
}

func TestFindClosestKnowledgeTokenOverlap(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	if _, err := s.InsertKnowledge(ctx, "favorite programming language is Go and Rust", false, models.KnowledgeAuto); err != nil {
		t.Fatalf("insert knowledge: %v", err)
	}
	if _, err := s.InsertKnowledge(ctx, "likes hiking in the mountains", false, models.KnowledgeAuto); err != nil {
		t.Fatalf("insert knowledge: %v", err)
	}
	hits, err := s.FindClosestKnowledge(ctx, "what programming language does the user like")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(hits) != 1 || hits[0].Content != "favorite programming language is Go and Rust" {
		t.Fatalf("hits = %+v, want exactly the programming-language row", hits)
	}
}

func TestPlatformConversationUpsertIsUnique(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	if _, err := s.UpsertPlatformConversation(ctx, "telegram", "u1", `[]`); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := s.UpsertPlatformConversation(ctx, "telegram", "u1", `[{"role":"user"}]`); err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	got, err := s.GetPlatformConversation(ctx, "telegram", "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Messages != `[{"role":"user"}]` {
		t.Fatalf("messages = %q, want latest transcript", got.Messages)
	}
}

func TestMetaRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	if err := s.SetMeta(ctx, "theme", "dark"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := s.GetMeta(ctx, "theme")
	if err != nil || !ok || v != "dark" {
		t.Fatalf("get = %q, %v, %v", v, ok, err)
	}
	if _, ok, err := s.GetMeta(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing key should be absent: %v %v", ok, err)
	}
}

func TestCountEpisodesAndConversations(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	agent, err := s.UpsertPrimaryAgent(ctx, models.Agent{Name: "Hive", Provider: "stub", Model: "m", Persona: "p"})
	if err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	if _, err := s.CreateConversation(ctx, agent.ID, "one"); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if _, err := s.InsertEpisode(ctx, "something happened"); err != nil {
		t.Fatalf("insert episode: %v", err)
	}

	conversations, err := s.CountConversations(ctx)
	if err != nil {
		t.Fatalf("count conversations: %v", err)
	}
	if conversations != 1 {
		t.Fatalf("conversations = %d, want 1", conversations)
	}

	episodes, err := s.CountEpisodes(ctx)
	if err != nil {
		t.Fatalf("count episodes: %v", err)
	}
	if episodes != 1 {
		t.Fatalf("episodes = %d, want 1", episodes)
	}
}
