// Package log configures the structured logger shared by the trigon
// binaries.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the process-wide logger at the given level. Every line
// carries a service=trigon field so mixed-fleet log streams stay
// attributable.
func Setup(logLevel string) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(logLevel),
	})

	slog.SetDefault(slog.New(handler).With("service", "trigon"))
}

// parseLevel maps a level name to its slog level; unknown names log at
// info.
func parseLevel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithModule scopes the default logger to one module of the engine.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
