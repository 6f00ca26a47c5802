package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a JSON slog logger. Level comes from SUPPLYTRACE_LOG_LEVEL
// (debug, info, warn, error), defaulting to info.
func New() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("SUPPLYTRACE_LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
