// Package export writes a Markdown transcript of a conversation to
// <home>/exports/<conversation-id>.md (spec.md §6's home layout), with an
// optional best-effort mirror to an S3-compatible bucket.
package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hiveagent/hive/pkg/models"
)

// Config configures an Exporter. S3 is optional; a nil S3 disables the
// mirror entirely and every export stays purely local.
type Config struct {
	HomeDir string
	S3      *S3Config
}

// Exporter writes the local export file for a conversation and, when S3 is
// configured, mirrors it in the background. Local write is always
// authoritative: failure to mirror is logged, never surfaced.
type Exporter struct {
	exportsDir string
	uploader   *s3Uploader
	logger     *slog.Logger
}

// New constructs an Exporter. If cfg.S3 is non-nil, it also builds the S3
// client; a client construction failure disables the mirror (logged) but
// never fails New, since the local export is the authoritative behavior.
func New(cfg Config, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "export")

	e := &Exporter{
		exportsDir: filepath.Join(cfg.HomeDir, "exports"),
		logger:     logger,
	}
	if cfg.S3 != nil {
		uploader, err := newS3Uploader(context.Background(), *cfg.S3)
		if err != nil {
			logger.Warn("s3 export mirror disabled", "error", err)
		} else {
			e.uploader = uploader
		}
	}
	return e
}

// Export renders messages as Markdown, writes it to
// <home>/exports/<conversationID>.md (overwriting any prior export for the
// same conversation), and — if an S3 bucket is configured — mirrors the
// same bytes there in the background. The local write is synchronous and
// its error is returned; the mirror never is.
func (e *Exporter) Export(ctx context.Context, conversationID string, messages []*models.Message) error {
	body := renderMarkdown(conversationID, messages)

	if err := os.MkdirAll(e.exportsDir, 0o755); err != nil {
		return fmt.Errorf("create exports dir: %w", err)
	}
	path := filepath.Join(e.exportsDir, conversationID+".md")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}

	if e.uploader != nil {
		go e.mirror(conversationID, body)
	}
	return nil
}

func (e *Exporter) mirror(conversationID string, body []byte) {
	ctx := context.Background()
	if err := e.uploader.put(ctx, conversationID+".md", body); err != nil {
		e.logger.Warn("s3 export mirror failed", "conversation_id", conversationID, "error", err)
	}
}

func renderMarkdown(conversationID string, messages []*models.Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# Conversation %s\n\n", conversationID)
	for _, m := range messages {
		fmt.Fprintf(&b, "## %s (%s)\n\n", capitalize(string(m.Role)), m.CreatedAt.Format("2006-01-02 15:04:05 MST"))
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}
	return b.Bytes()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
