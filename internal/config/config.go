// Package config loads and validates the YAML configuration file that
// drives one hived boot: home directory, heartbeat cadence, provider
// credentials, per-platform integration settings, rate-limit window,
// prompt auto-update, and crystallization thresholds.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hiveagent/hive/internal/daemon"
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

// Config is the root configuration structure for hived.
type Config struct {
	HomeDir      string             `yaml:"home_dir"`
	MetricsAddr  string             `yaml:"metrics_addr"`
	Heartbeat    HeartbeatConfig    `yaml:"heartbeat"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Providers    ProvidersConfig    `yaml:"providers"`
	Integrations IntegrationsConfig `yaml:"integrations"`
	PromptUpdate PromptUpdateConfig `yaml:"prompt_update"`
	Memory       memory.Config      `yaml:"memory"`
	Export       ExportConfig       `yaml:"export"`
	Tracing      TracingConfig      `yaml:"tracing"`
}

// TracingConfig configures the optional OTLP exporter for orchestrator and
// task-worker spans. An empty Endpoint keeps tracing a no-op.
type TracingConfig struct {
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Insecure     bool    `yaml:"insecure"`
}

// ExportConfig configures the optional S3 mirror of conversation exports.
// A nil S3 section means exports stay purely local; an s3 section that is
// present must name a bucket, or validation fails.
type ExportConfig struct {
	S3 *ExportS3Config `yaml:"s3"`
}

type ExportS3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// HeartbeatConfig configures the daemon's liveness tick.
type HeartbeatConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// RateLimitConfig configures the per-(platform,from) minimum message gap.
type RateLimitConfig struct {
	Window time.Duration `yaml:"window"`
}

// ProvidersConfig lists the backend credentials hived can build a
// provider registry from. Every field is optional.
type ProvidersConfig struct {
	Default   string               `yaml:"default"`
	Anthropic *AnthropicConfig     `yaml:"anthropic"`
	OpenAI    []OpenAICompatConfig `yaml:"openai"`
	Google    *GoogleConfig        `yaml:"google"`
	Bedrock   *BedrockConfig       `yaml:"bedrock"`
	Ollama    *OllamaConfig        `yaml:"ollama"`
}

type AnthropicConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

type OpenAICompatConfig struct {
	Name         string `yaml:"name"`
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
	ToolsEnabled bool   `yaml:"tools_enabled"`
}

type GoogleConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
}

type BedrockConfig struct {
	Region       string `yaml:"region"`
	DefaultModel string `yaml:"default_model"`
}

type OllamaConfig struct {
	BaseURL      string        `yaml:"base_url"`
	DefaultModel string        `yaml:"default_model"`
	Timeout      time.Duration `yaml:"timeout"`
}

// IntegrationsConfig lists per-platform adapter settings. A platform is
// wired only when its section is present and Enabled is true.
type IntegrationsConfig struct {
	Discord  *DiscordConfig  `yaml:"discord"`
	Telegram *TelegramConfig `yaml:"telegram"`
	Slack    *SlackConfig    `yaml:"slack"`
	WhatsApp *WhatsAppConfig `yaml:"whatsapp"`
	Matrix   *MatrixConfig   `yaml:"matrix"`
}

type DiscordConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	AppToken string `yaml:"app_token"`
}

// WhatsAppConfig has no token: whatsmeow pairs via QR code into its own
// session directory under <home>/integrations/whatsapp/session/.
type WhatsAppConfig struct {
	Enabled bool `yaml:"enabled"`
}

type MatrixConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Homeserver  string `yaml:"homeserver"`
	UserID      string `yaml:"user_id"`
	AccessToken string `yaml:"access_token"`
	DeviceID    string `yaml:"device_id"`
}

// PromptUpdateConfig configures the §4.L background checker.
type PromptUpdateConfig struct {
	URL      string        `yaml:"url"`
	Interval time.Duration `yaml:"interval"`
}

// Load reads path, expands ${VAR} references, strictly decodes it against
// Config (unknown fields rejected), applies the HIVE_HOME environment
// override, fills in defaults, and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	expanded := os.ExpandEnv(string(raw))

	cfg, err := decodeStrict(expanded)
	if err != nil {
		return nil, err
	}

	applyHomeDirOverride(cfg)
	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyHomeDirOverride gives HIVE_HOME precedence over the file's
// home_dir, per spec.md §6, and falls back to <user-home>/.hive when
// neither is set.
func applyHomeDirOverride(cfg *Config) {
	if env := strings.TrimSpace(os.Getenv("HIVE_HOME")); env != "" {
		cfg.HomeDir = env
		return
	}
	if strings.TrimSpace(cfg.HomeDir) != "" {
		return
	}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.HomeDir = filepath.Join(home, ".hive")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Heartbeat.Interval <= 0 {
		cfg.Heartbeat.Interval = daemon.DefaultHeartbeatInterval
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = 3 * time.Second
	}
	if cfg.PromptUpdate.Interval <= 0 {
		cfg.PromptUpdate.Interval = promptupdate.DefaultInterval
	}
}

// ConfigValidationError aggregates every field-level problem found by
// validateConfig so an operator sees all of them in one pass.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	var issues []string

	if strings.TrimSpace(cfg.HomeDir) == "" {
		issues = append(issues, "home_dir could not be determined (set HIVE_HOME or home_dir)")
	}
	if cfg.Heartbeat.Interval < daemon.MinHeartbeatInterval {
		issues = append(issues, fmt.Sprintf("heartbeat.interval must be >= %s", daemon.MinHeartbeatInterval))
	}
	if cfg.RateLimit.Window < 0 {
		issues = append(issues, "rate_limit.window must be >= 0")
	}
	if cfg.Providers.Anthropic != nil && strings.TrimSpace(cfg.Providers.Anthropic.APIKey) == "" {
		issues = append(issues, "providers.anthropic.api_key is required when providers.anthropic is set")
	}
	if cfg.Providers.Google != nil && strings.TrimSpace(cfg.Providers.Google.APIKey) == "" {
		issues = append(issues, "providers.google.api_key is required when providers.google is set")
	}
	for i, oc := range cfg.Providers.OpenAI {
		if strings.TrimSpace(oc.Name) == "" {
			issues = append(issues, fmt.Sprintf("providers.openai[%d].name is required", i))
		}
	}
	if cfg.Integrations.Discord != nil && cfg.Integrations.Discord.Enabled && strings.TrimSpace(cfg.Integrations.Discord.Token) == "" {
		issues = append(issues, "integrations.discord.token is required when enabled")
	}
	if cfg.Integrations.Telegram != nil && cfg.Integrations.Telegram.Enabled && strings.TrimSpace(cfg.Integrations.Telegram.Token) == "" {
		issues = append(issues, "integrations.telegram.token is required when enabled")
	}
	if cfg.Integrations.Slack != nil && cfg.Integrations.Slack.Enabled {
		if strings.TrimSpace(cfg.Integrations.Slack.BotToken) == "" || strings.TrimSpace(cfg.Integrations.Slack.AppToken) == "" {
			issues = append(issues, "integrations.slack.bot_token and app_token are required when enabled")
		}
	}
	if cfg.Integrations.Matrix != nil && cfg.Integrations.Matrix.Enabled {
		if strings.TrimSpace(cfg.Integrations.Matrix.Homeserver) == "" || strings.TrimSpace(cfg.Integrations.Matrix.AccessToken) == "" {
			issues = append(issues, "integrations.matrix.homeserver and access_token are required when enabled")
		}
	}
	if cfg.Export.S3 != nil && strings.TrimSpace(cfg.Export.S3.Bucket) == "" {
		issues = append(issues, "export.s3.bucket is required when export.s3 is set")
	}
	if cfg.Memory.CrystallizationEpisodeWindow < 0 {
		issues = append(issues, "memory.crystallization_episode_window must be >= 0")
	}
	if cfg.Memory.CrystallizationRecencyWindow < 0 {
		issues = append(issues, "memory.crystallization_recency_window must be >= 0")
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}

// ToDaemonConfig translates the decoded file into the wiring shape
// internal/daemon consumes, building adapter/provider configs only where
// the corresponding section is present (providers) or present-and-enabled
// (integrations).
func (cfg *Config) ToDaemonConfig() daemon.Config {
	dc := daemon.Config{
		HomeDir:           cfg.HomeDir,
		HeartbeatInterval: cfg.Heartbeat.Interval,
		RateLimitWindow:   cfg.RateLimit.Window,
		MetricsAddr:       cfg.MetricsAddr,
		Memory:            cfg.Memory,
		Tracing: tracing.Config{
			ServiceName:  "hived",
			Endpoint:     cfg.Tracing.Endpoint,
			SamplingRate: cfg.Tracing.SamplingRate,
			Insecure:     cfg.Tracing.Insecure,
		},
		PromptUpdate: promptupdate.Config{
			URL:      cfg.PromptUpdate.URL,
			Interval: cfg.PromptUpdate.Interval,
		},
		Providers: daemon.ProviderConfig{
			Default: cfg.Providers.Default,
		},
	}

	if p := cfg.Providers.Anthropic; p != nil {
		dc.Providers.Anthropic = &provider.AnthropicConfig{APIKey: p.APIKey, BaseURL: p.BaseURL, DefaultModel: p.DefaultModel}
	}
	if p := cfg.Providers.Google; p != nil {
		dc.Providers.Google = &provider.GoogleConfig{APIKey: p.APIKey, DefaultModel: p.DefaultModel}
	}
	if p := cfg.Providers.Bedrock; p != nil {
		dc.Providers.Bedrock = &provider.BedrockConfig{Region: p.Region, DefaultModel: p.DefaultModel}
	}
	if p := cfg.Providers.Ollama; p != nil {
		dc.Providers.Ollama = &provider.OllamaConfig{BaseURL: p.BaseURL, DefaultModel: p.DefaultModel, Timeout: p.Timeout}
	}
	for _, oc := range cfg.Providers.OpenAI {
		dc.Providers.OpenAI = append(dc.Providers.OpenAI, provider.OpenAICompatConfig{
			Name: oc.Name, APIKey: oc.APIKey, BaseURL: oc.BaseURL, DefaultModel: oc.DefaultModel, ToolsEnabled: oc.ToolsEnabled,
		})
	}

	if d := cfg.Integrations.Discord; d != nil && d.Enabled {
		dc.Discord = &discord.Config{Token: d.Token}
	}
	if t := cfg.Integrations.Telegram; t != nil && t.Enabled {
		dc.Telegram = &telegram.Config{Token: t.Token}
	}
	if s := cfg.Integrations.Slack; s != nil && s.Enabled {
		dc.Slack = &slack.Config{BotToken: s.BotToken, AppToken: s.AppToken}
	}
	if w := cfg.Integrations.WhatsApp; w != nil && w.Enabled {
		dc.WhatsApp = &whatsapp.Config{SessionDir: filepath.Join(cfg.HomeDir, "integrations", "whatsapp", "session")}
	}
	if m := cfg.Integrations.Matrix; m != nil && m.Enabled {
		dc.Matrix = &matrix.Config{Homeserver: m.Homeserver, UserID: m.UserID, AccessToken: m.AccessToken, DeviceID: m.DeviceID}
	}

	if s3 := cfg.Export.S3; s3 != nil {
		dc.ExportS3 = &export.S3Config{
			Bucket:          s3.Bucket,
			Region:          s3.Region,
			Endpoint:        s3.Endpoint,
			Prefix:          s3.Prefix,
			AccessKeyID:     s3.AccessKeyID,
			SecretAccessKey: s3.SecretAccessKey,
			UsePathStyle:    s3.UsePathStyle,
		}
	}

	return dc
}
