package logging

import (
	"io"
	"log/slog"
	"os"

	multi "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/front-init/message-relay/internal/config"
)

// New creates the service logger from configuration.
// When Output is a file path the log is rotated by size and also mirrored to
// stdout as text. The returned closer releases the log file.
func New(cfg config.LoggingConfig) (*slog.Logger, io.Closer) {
	level := ParseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	switch cfg.Output {
	case "stderr":
		return slog.New(newHandler(cfg.Format, os.Stderr, opts)), nopCloser{}
	case "stdout", "":
		return slog.New(newHandler(cfg.Format, os.Stdout, opts)), nopCloser{}
	}

	logFile := &lumberjack.Logger{
		Filename:   cfg.Output,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	logger := slog.New(
		multi.Fanout(
			slog.NewTextHandler(os.Stdout, opts),
			newHandler(cfg.Format, logFile, opts),
		),
	)

	return logger, logFile
}

// ParseLevel maps a configured level name to a slog level, defaulting to info
func ParseLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(format string, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
