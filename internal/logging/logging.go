// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ParseLevel accepts "debug", "info", "warn" and "error" (case-insensitive).
// Anything else is info.
func ParseLevel(level string) slog.Level {
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

// NewLogger builds a text or JSON logger writing to w.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Setup creates the logger, sets it as the default and routes the standard
// log package through it. path "-" or "" logs to stderr; otherwise the file
// is created with its directory. The returned func closes the file.
func Setup(level, format, path string) (*slog.Logger, func(), error) {
	var (
		w       io.Writer = os.Stderr
		cleanup           = func() {}
	)
	if path = strings.TrimSpace(path); path != "" && path != "-" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, cleanup, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, cleanup, fmt.Errorf("open log file: %w", err)
		}
		w = f
		cleanup = func() { _ = f.Close() }
	}

	logger := NewLogger(w, level, format)
	slog.SetDefault(logger)
	log.SetFlags(0)
	return logger, cleanup, nil
}

// DefaultPath returns ~/.local/state/onuwatch/<name>.log, or "" when the
// home directory is unknown.
func DefaultPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "onuwatch", name+".log")
}
