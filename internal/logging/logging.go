// Package logging wraps log/slog so every component logs through the same
// handler with a stable "component" attribute.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init installs the process-wide logger. When jsonFormat is true log records
// are emitted as JSON, otherwise as human-readable text.
func Init(level slog.Level, jsonFormat bool) {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// Component returns a logger tagged with the component name.
func Component(name string) *slog.Logger {
	return slog.Default().With("component", name)
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
