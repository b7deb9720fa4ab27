// Package daemon wires the store, provider registry, orchestrator, memory
// pipeline, platform adapters, and task worker into one long-running
// process: the ten-step boot sequence, the JSON-per-line IPC server, the
// heartbeat, and the shutdown path.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hiveagent/hive/internal/export"
	"github.com/hiveagent/hive/internal/memory"
	"github.com/hiveagent/hive/internal/platform/discord"
	"github.com/hiveagent/hive/internal/platform/matrix"
	"github.com/hiveagent/hive/internal/platform/slack"
	"github.com/hiveagent/hive/internal/platform/telegram"
	"github.com/hiveagent/hive/internal/platform/whatsapp"
	"github.com/hiveagent/hive/internal/promptupdate"
	"github.com/hiveagent/hive/internal/provider"
	"github.com/hiveagent/hive/internal/tracing"
)

const (
	// DefaultHeartbeatInterval is used when Config.HeartbeatInterval is
	// zero.
	DefaultHeartbeatInterval = 30 * time.Second
	// MinHeartbeatInterval is the floor Config.HeartbeatInterval is
	// clamped to.
	MinHeartbeatInterval = 250 * time.Millisecond
	// DefaultIPCPort is the first port the daemon tries to bind, per
	// spec.md's home layout and IPC sections.
	DefaultIPCPort = 2718
	// adapterRetryInterval is how long a crashed-at-start adapter waits
	// before the daemon tries starting it again.
	adapterRetryInterval = 30 * time.Second
)

// ProviderConfig lists the backend credentials the daemon can build a
// provider.Registry from. Every field is optional; the daemon boots with
// agent-dependent features disabled if none are set or if every
// configured backend fails to construct.
type ProviderConfig struct {
	Default   string
	Anthropic *provider.AnthropicConfig
	OpenAI    []provider.OpenAICompatConfig
	Google    *provider.GoogleConfig
	Bedrock   *provider.BedrockConfig
	Ollama    *provider.OllamaConfig
}

// Config configures one daemon boot. HomeDir is the only required field.
type Config struct {
	HomeDir           string
	HeartbeatInterval time.Duration
	IPCPortStart      int
	// RateLimitWindow is the minimum gap between allowed messages from the
	// same (platform, from) pair. Zero uses platform's own default (3s,
	// per spec.md §4.H).
	RateLimitWindow time.Duration
	// MetricsAddr, if set, is a loopback host:port the Prometheus
	// /metrics handler binds to. Empty disables the metrics listener.
	MetricsAddr string

	Memory       memory.Config
	Providers    ProviderConfig
	PromptUpdate promptupdate.Config
	// ExportS3, if set, mirrors every conversation export written to
	// <HomeDir>/exports to an S3-compatible bucket. Nil keeps exports
	// purely local.
	ExportS3 *export.S3Config

	// Tracing configures the optional OTLP exporter for orchestrator and
	// task-worker spans. A zero value keeps tracing a no-op.
	Tracing tracing.Config

	Discord  *discord.Config
	Telegram *telegram.Config
	Slack    *slack.Config
	WhatsApp *whatsapp.Config
	Matrix   *matrix.Config

	// Logger, if nil, defaults to a JSON logger writing to
	// <HomeDir>/daemon.log through the rotation scheme in log.go.
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.HeartbeatInterval < MinHeartbeatInterval {
		c.HeartbeatInterval = MinHeartbeatInterval
	}
	if c.IPCPortStart <= 0 {
		c.IPCPortStart = DefaultIPCPort
	}
	return c
}

// buildProviders constructs one Provider per configured backend and
// assembles a Registry. Returns an error only when zero providers could be
// built at all — the caller treats that as a non-fatal boot warning, not a
// reason to abort startup (spec.md §4.K step 4).
func buildProviders(cfg ProviderConfig) (*provider.Registry, error) {
	var built []provider.Provider
	var errs []error

	if cfg.Anthropic != nil {
		p, err := provider.NewAnthropic(*cfg.Anthropic)
		if err != nil {
			errs = append(errs, fmt.Errorf("anthropic: %w", err))
		} else {
			built = append(built, p)
		}
	}
	for _, oc := range cfg.OpenAI {
		p, err := provider.NewOpenAICompat(oc)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", oc.Name, err))
		} else {
			built = append(built, p)
		}
	}
	if cfg.Google != nil {
		p, err := provider.NewGoogle(context.Background(), *cfg.Google)
		if err != nil {
			errs = append(errs, fmt.Errorf("google: %w", err))
		} else {
			built = append(built, p)
		}
	}
	if cfg.Bedrock != nil {
		p, err := provider.NewBedrock(context.Background(), *cfg.Bedrock)
		if err != nil {
			errs = append(errs, fmt.Errorf("bedrock: %w", err))
		} else {
			built = append(built, p)
		}
	}
	if cfg.Ollama != nil {
		built = append(built, provider.NewOllama(*cfg.Ollama))
	}

	if len(built) == 0 {
		if len(errs) > 0 {
			return nil, fmt.Errorf("no provider could be constructed: %w", errs[0])
		}
		return nil, fmt.Errorf("no provider configured")
	}

	reg, err := provider.NewRegistry(cfg.Default, built...)
	if err != nil {
		return nil, err
	}
	return reg, nil
}
