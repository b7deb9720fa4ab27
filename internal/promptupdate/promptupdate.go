// Package promptupdate periodically pulls default prompt layer files from
// a remote listing into <home>/prompts, per spec.md §4.L. Every file
// already present is left alone; every failure is logged and swallowed.
package promptupdate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/hiveagent/hive/internal/cron"
	"github.com/hiveagent/hive/internal/store"
)

// DefaultInterval is how often the checker runs once per daemon boot.
const DefaultInterval = 24 * time.Hour

// DefaultURL is the fixed directory listing endpoint checked for new
// prompt files. Empty disables the checker.
const DefaultURL = ""

const metaKey = "prompts_last_checked"

// filePattern extracts prompts/<file>.md tokens out of a directory
// listing body. No HTML-parsing library appears anywhere in the
// dependency pack (see internal/orchestrator/webfetch.go's own stdlib
// regexp justification), so a regexp scan over the raw listing text is
// used here too rather than a full DOM parse.
var filePattern = regexp.MustCompile(`prompts/([A-Za-z0-9_.-]+\.md)`)

// Config configures a Checker.
type Config struct {
	// URL is the fixed directory listing endpoint. Empty disables the
	// checker entirely.
	URL string
	// Interval is how often the checker runs. Zero means DefaultInterval.
	Interval time.Duration
	// PromptsDir is <home>/prompts.
	PromptsDir string
}

// Checker periodically fetches a directory listing and downloads any
// prompt file missing locally.
type Checker struct {
	cfg    Config
	store  *store.Store
	logger *slog.Logger
	client *http.Client
}

// New constructs a Checker. A nil logger defaults to slog.Default().
func New(cfg Config, st *store.Store, logger *slog.Logger) *Checker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		cfg:    cfg,
		store:  st,
		logger: logger.With("component", "promptupdate"),
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Run ticks once immediately and then every cfg.Interval until ctx is
// cancelled. A blank cfg.URL disables the checker, per spec.md §4.L — no
// default prompt source is assumed.
func (c *Checker) Run(ctx context.Context) {
	if c.cfg.URL == "" {
		return
	}

	c.tick(ctx)

	sched := cron.Every(c.cfg.Interval)
	for {
		next, ok, err := sched.Next(time.Now())
		if !ok || err != nil {
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			c.tick(ctx)
		}
	}
}

// tick fetches the listing, downloads whatever is missing, and stamps
// prompts_last_checked. Every failure is logged at Warn and swallowed —
// spec.md §4.L: "All failures are silent."
func (c *Checker) tick(ctx context.Context) {
	defer c.stamp(ctx)

	body, err := c.fetchListing(ctx)
	if err != nil {
		c.logger.Warn("fetch prompt listing", "error", err)
		return
	}

	if err := os.MkdirAll(c.cfg.PromptsDir, 0o755); err != nil {
		c.logger.Warn("create prompts dir", "error", err)
		return
	}

	for _, name := range filePattern.FindAllStringSubmatch(body, -1) {
		file := name[1]
		if err := c.downloadIfMissing(ctx, file); err != nil {
			c.logger.Warn("download prompt file", "file", file, "error", err)
		}
	}
}

func (c *Checker) fetchListing(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "hive-agent/1.0 (+prompt auto-update)")
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("listing fetch failed: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// downloadIfMissing fetches <cfg.URL>/prompts/<file> and writes it to
// <PromptsDir>/<file> using exclusive-create semantics: an existing file
// is never overwritten, and the open itself is the race-free "missing"
// check rather than a separate os.Stat.
func (c *Checker) downloadIfMissing(ctx context.Context, name string) error {
	dest := filepath.Join(c.cfg.PromptsDir, name)

	f, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+"/prompts/"+name, nil)
	if err != nil {
		os.Remove(dest)
		return err
	}
	req.Header.Set("User-Agent", "hive-agent/1.0 (+prompt auto-update)")
	resp, err := c.client.Do(req)
	if err != nil {
		os.Remove(dest)
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		os.Remove(dest)
		return fmt.Errorf("download failed: status %d", resp.StatusCode)
	}

	if _, err := io.Copy(f, io.LimitReader(resp.Body, 4<<20)); err != nil {
		os.Remove(dest)
		return err
	}
	return nil
}

func (c *Checker) stamp(ctx context.Context) {
	if err := c.store.SetMeta(ctx, metaKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		c.logger.Warn("stamp prompts_last_checked", "error", err)
	}
}
