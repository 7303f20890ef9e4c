package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// InvocationIDKey is the context key for the per-invocation id
	InvocationIDKey ContextKey = "invocation_id"
	// StageKey is the context key for the pipeline stage name
	StageKey ContextKey = "stage"
)

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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

// New builds a logger writing to w. Anything but "text" gets the JSON handler.
func New(w io.Writer, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// Init initializes the global slog logger with the given configuration
func Init(cfg Config) {
	slog.SetDefault(New(os.Stdout, cfg))
}

// StartInvocation tags ctx with a fresh invocation id and the stage name.
func StartInvocation(ctx context.Context, stage string) (context.Context, string) {
	id := uuid.NewString()
	ctx = context.WithValue(ctx, InvocationIDKey, id)
	ctx = context.WithValue(ctx, StageKey, stage)
	return ctx, id
}

// WithContext returns a logger with context values extracted
func WithContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if id, ok := ctx.Value(InvocationIDKey).(string); ok && id != "" {
		logger = logger.With("invocationId", id)
	}
	if stage, ok := ctx.Value(StageKey).(string); ok && stage != "" {
		logger = logger.With("stage", stage)
	}

	return logger
}
