package daemon

import (
	"testing"
	"time"

	"github.com/hiveagent/hive/internal/provider"
)

func TestConfigWithDefaults(t *testing.T) {
	c := Config{}.withDefaults()
	if c.HeartbeatInterval != DefaultHeartbeatInterval {
		t.Errorf("HeartbeatInterval = %v, want %v", c.HeartbeatInterval, DefaultHeartbeatInterval)
	}
	if c.IPCPortStart != DefaultIPCPort {
		t.Errorf("IPCPortStart = %d, want %d", c.IPCPortStart, DefaultIPCPort)
	}

	c = Config{HeartbeatInterval: time.Millisecond}.withDefaults()
	if c.HeartbeatInterval != MinHeartbeatInterval {
		t.Errorf("HeartbeatInterval floor = %v, want %v", c.HeartbeatInterval, MinHeartbeatInterval)
	}
}

func TestBuildProvidersNoneConfigured(t *testing.T) {
	if _, err := buildProviders(ProviderConfig{}); err == nil {
		t.Fatal("expected error with no providers configured")
	}
}

func TestBuildProvidersOllamaOnly(t *testing.T) {
	reg, err := buildProviders(ProviderConfig{
		Ollama: &provider.OllamaConfig{BaseURL: "http://localhost:11434", DefaultModel: "llama3"},
	})
	if err != nil {
		t.Fatalf("buildProviders: %v", err)
	}
	if reg.Default() == nil || reg.Default().Name() != "ollama" {
		t.Fatalf("Default() = %v, want ollama", reg.Default())
	}
}

func TestBuildProvidersPartialFailureStillSucceeds(t *testing.T) {
	reg, err := buildProviders(ProviderConfig{
		Default:   "ollama",
		Anthropic: &provider.AnthropicConfig{APIKey: ""}, // expected to fail construction
		Ollama:    &provider.OllamaConfig{},
	})
	if err != nil {
		t.Fatalf("buildProviders: %v", err)
	}
	if reg.Default().Name() != "ollama" {
		t.Fatalf("Default() = %s, want ollama", reg.Default().Name())
	}
}
