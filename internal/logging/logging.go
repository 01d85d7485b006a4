// Package logging provides structured logging for badnet.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a logger writing to stderr. Stdout is reserved for
// the relay's console lines.
func NewLogger(level, format string) *slog.Logger {
	return NewLoggerWithWriter(level, format, os.Stderr)
}

// NewLoggerWithWriter creates a new structured logger with a custom writer.
func NewLoggerWithWriter(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// ParseLevel converts a string log level to slog.Level.
// Unknown levels map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NopLogger returns a logger that discards all output.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Component returns logger scoped to the named component. A nil logger
// yields a discarding one.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = NopLogger()
	}
	return logger.With(slog.String(KeyComponent, name))
}

// Attribute keys shared by the relay, the health server and the CLI.
const (
	KeyComponent  = "component"
	KeyError      = "error"
	KeyListen     = "listen"
	KeyTarget     = "target"
	KeyClient     = "client"
	KeyLossRate   = "loss_rate"
	KeyDirection  = "direction"
	KeyReceived   = "received"
	KeyForwarded  = "forwarded"
	KeyDropped    = "dropped"
	KeySkipped    = "skipped"
	KeyBytes      = "bytes"
	KeyRemoteAddr = "remote_addr"
	KeyLocalAddr  = "local_addr"
)
