package loggy

import (
	"context"

	"github.com/tildaslashalef/sonarfix/internal/ulid"
)

type contextKey string

const (
	loggerKey contextKey = "logger"
	runIDKey  contextKey = "run_id"
)

// FromContext retrieves the logger from the context, falling back to the global logger
func FromContext(ctx context.Context) *Logger {
	if ctx == nil {
		return globalLogger
	}

	if logger, ok := ctx.Value(loggerKey).(*Logger); ok && logger != nil {
		return logger
	}

	return globalLogger
}

// WithLogger returns a new context with the logger attached
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// WithRunID tags the context and its logger with a run ID. A run ID already
// carried by ctx is kept.
func WithRunID(ctx context.Context, logger *Logger) (context.Context, string) {
	id := GetRunID(ctx)
	if id == "" {
		id = ulid.RunID()
		ctx = context.WithValue(ctx, runIDKey, id)
	}
	return WithLogger(ctx, logger.With("run_id", id)), id
}

// GetRunID retrieves the run ID from the context
func GetRunID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(runIDKey).(string)
	return id
}
