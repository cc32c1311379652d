package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns a slog.Logger that writes JSON records to stdout.
// Source locations are attached so a log line can be traced back to
// its call site.
func NewLogger(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: true,
	}))
}

// parseLevel maps a config string to a slog level, defaulting to info
// on anything it does not recognize.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
