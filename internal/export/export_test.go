package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hiveagent/hive/pkg/models"
)

func sampleMessages() []*models.Message {
	now := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	return []*models.Message{
		{ID: "m1", ConversationID: "c1", Role: models.RoleUser, Content: "hello", CreatedAt: now},
		{ID: "m2", ConversationID: "c1", Role: models.RoleAssistant, Content: "hi there", CreatedAt: now.Add(time.Second)},
	}
}

func TestExportWritesLocalMarkdown(t *testing.T) {
	home := t.TempDir()
	e := New(Config{HomeDir: home}, nil)

	if err := e.Export(context.Background(), "c1", sampleMessages()); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	body, err := os.ReadFile(filepath.Join(home, "exports", "c1.md"))
	if err != nil {
		t.Fatalf("read export file: %v", err)
	}
	text := string(body)
	if !strings.Contains(text, "# Conversation c1") {
		t.Fatalf("export missing title, got: %s", text)
	}
	if !strings.Contains(text, "## User") || !strings.Contains(text, "## Assistant") {
		t.Fatalf("export missing role headers, got: %s", text)
	}
	if !strings.Contains(text, "hello") || !strings.Contains(text, "hi there") {
		t.Fatalf("export missing message bodies, got: %s", text)
	}
}

func TestExportOverwritesOnSecondCall(t *testing.T) {
	home := t.TempDir()
	e := New(Config{HomeDir: home}, nil)
	ctx := context.Background()

	if err := e.Export(ctx, "c1", sampleMessages()[:1]); err != nil {
		t.Fatalf("first Export() error = %v", err)
	}
	if err := e.Export(ctx, "c1", sampleMessages()); err != nil {
		t.Fatalf("second Export() error = %v", err)
	}

	body, err := os.ReadFile(filepath.Join(home, "exports", "c1.md"))
	if err != nil {
		t.Fatalf("read export file: %v", err)
	}
	if !strings.Contains(string(body), "hi there") {
		t.Fatal("second export should fully replace the first, but the new message is missing")
	}
}

func TestExportWithoutS3ConfigHasNoUploader(t *testing.T) {
	e := New(Config{HomeDir: t.TempDir()}, nil)
	if e.uploader != nil {
		t.Fatal("uploader should be nil when Config.S3 is nil")
	}
}

func TestNewS3UploaderRequiresBucket(t *testing.T) {
	if _, err := newS3Uploader(context.Background(), S3Config{Region: "us-east-1"}); err == nil {
		t.Fatal("expected an error for a missing bucket")
	}
}
