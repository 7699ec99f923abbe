// Package log is the migration tool's structured logger. Records are written
// through log/slog and pick up the trace, command and migration file tagged
// on the context.
package log //nolint:revive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const (
	// TraceIDKey tags one CLI invocation or one scheduled watch run.
	TraceIDKey contextKey = "traceId"
	// CommandKey holds the command name: migrate, create, status, watch or interactive.
	CommandKey contextKey = "command"
	// MigrationKey holds the migration file currently being applied.
	MigrationKey contextKey = "migration"
)

var taggedKeys = []contextKey{TraceIDKey, CommandKey, MigrationKey} //nolint:gochecknoglobals

// Logger receives every record from the package-level helpers. Operator
// output goes to stdout, so logs default to stderr.
var Logger = New(os.Stderr, "text", slog.LevelInfo, nil) //nolint:gochecknoglobals

// SetDefault replaces Logger.
func SetDefault(l *slog.Logger) {
	Logger = l
}

// taggingHandler copies string context values onto each record.
type taggingHandler struct {
	slog.Handler
	extra map[string]any
}

func (h *taggingHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(contextAttrs(ctx, h.extra)...)

	if err := h.Handler.Handle(ctx, r); err != nil {
		return fmt.Errorf("failed to write log record: %w", err)
	}
	return nil
}

func (h *taggingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &taggingHandler{Handler: h.Handler.WithAttrs(attrs), extra: h.extra}
}

func (h *taggingHandler) WithGroup(name string) slog.Handler {
	return &taggingHandler{Handler: h.Handler.WithGroup(name), extra: h.extra}
}

func contextAttrs(ctx context.Context, extra map[string]any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(taggedKeys)+len(extra))
	for _, key := range taggedKeys {
		if value, ok := ctx.Value(key).(string); ok {
			attrs = append(attrs, slog.String(string(key), value))
		}
	}
	for name, key := range extra {
		if value, ok := ctx.Value(key).(string); ok {
			attrs = append(attrs, slog.String(name, value))
		}
	}
	return attrs
}

// New builds a logger writing "json" or text records to w. extra maps an
// attribute name to a context key whose string value should be attached to
// every record, on top of the trace, command and migration tags.
func New(w io.Writer, format string, level slog.Level, extra map[string]any) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(&taggingHandler{Handler: handler, extra: extra})
}

// ParseLevel maps LOG_LEVEL values to slog levels, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// Debug is for call sites without a context, such as directory bootstrap.
func Debug(msg string, args ...any) {
	Logger.Log(context.Background(), slog.LevelDebug, msg, args...)
}

func DebugContext(ctx context.Context, msg string, args ...any) {
	Logger.Log(ctx, slog.LevelDebug, msg, args...)
}

func InfoContext(ctx context.Context, msg string, args ...any) {
	Logger.Log(ctx, slog.LevelInfo, msg, args...)
}

func WarnContext(ctx context.Context, msg string, args ...any) {
	Logger.Log(ctx, slog.LevelWarn, msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	Logger.Log(ctx, slog.LevelError, msg, args...)
}
