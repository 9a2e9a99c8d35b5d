// ABOUTME: Structured logger construction for every command
// ABOUTME: Text at debug level in development, JSON at info level elsewhere
package logger

import (
	"io"
	"log/slog"
	"os"
)

// New builds the process logger writing to stderr. Stdout stays free for
// command output and the MCP stdio transport.
func New(env string) *slog.Logger {
	return NewWithWriter(env, os.Stderr)
}

// NewWithWriter builds a logger writing to w.
func NewWithWriter(env string, w io.Writer) *slog.Logger {
	if env == "development" {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// Component scopes a logger to one subsystem.
func Component(l *slog.Logger, name string) *slog.Logger {
	return l.With("component", name)
}
