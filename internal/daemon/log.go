package daemon

import (
	"log/slog"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logMaxSizeMB  = 10
	logMaxBackups = 3
)

// newFileLogger builds the daemon's default structured logger: JSON
// records (matching internal/observability's io.Writer-based handler
// idiom) written through a size-rotated file, per spec.md §6's log
// rotation rule (10 MiB, three historical files).
func newFileLogger(homeDir string) (*slog.Logger, *lumberjack.Logger) {
	writer := &lumberjack.Logger{
		Filename:   filepath.Join(homeDir, "daemon.log"),
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAge:     0,
		Compress:   false,
	}
	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(handler), writer
}
