package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New builds the process logger: JSON to stdout, level from config. slog
// keeps the standard-library feel while the output stays shippable to any
// log backend.
func New(level, component string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler).With("component", component)
}

func parseLevel(level string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
