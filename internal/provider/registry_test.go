package provider

import (
	"context"
	"testing"
)

type stubProvider struct {
	name string
}

func (s *stubProvider) Name() string                     { return s.name }
func (s *stubProvider) Models() []Model                   { return nil }
func (s *stubProvider) DefaultModel() string              { return "stub-model" }
func (s *stubProvider) SupportsTools() bool                { return false }
func (s *stubProvider) Ping(ctx context.Context) error     { return nil }
func (s *stubProvider) StreamChat(ctx context.Context, req Request) (<-chan Chunk, error) {
	return nil, nil
}
func (s *stubProvider) CompleteChat(ctx context.Context, req Request) (CompletionResult, error) {
	return CompletionResult{}, nil
}

func TestRegistryDefaultsToFirstProvider(t *testing.T) {
	reg, err := NewRegistry("", &stubProvider{name: "openai"}, &stubProvider{name: "anthropic"})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if reg.Default().Name() != "openai" {
		t.Fatalf("Default() = %s, want openai", reg.Default().Name())
	}
	got, err := reg.Get("")
	if err != nil || got.Name() != "openai" {
		t.Fatalf("Get(\"\") = %v, %v", got, err)
	}
}

func TestRegistryGetByName(t *testing.T) {
	reg, _ := NewRegistry("anthropic", &stubProvider{name: "openai"}, &stubProvider{name: "anthropic"})
	got, err := reg.Get("anthropic")
	if err != nil || got.Name() != "anthropic" {
		t.Fatalf("Get(anthropic) = %v, %v", got, err)
	}
}

func TestRegistryGetUnknownName(t *testing.T) {
	reg, _ := NewRegistry("", &stubProvider{name: "openai"})
	if _, err := reg.Get("missing"); err == nil {
		t.Fatal("expected error for unknown provider name")
	}
}

func TestNewRegistryRejectsUnknownDefault(t *testing.T) {
	if _, err := NewRegistry("missing", &stubProvider{name: "openai"}); err == nil {
		t.Fatal("expected error for unregistered default name")
	}
}

func TestNewRegistryRejectsEmpty(t *testing.T) {
	if _, err := NewRegistry("anything"); err == nil {
		t.Fatal("expected error with zero providers")
	}
}
