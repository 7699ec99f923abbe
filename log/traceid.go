package log

import (
	"context"

	"github.com/google/uuid"
)

// WithTraceID returns a copy of ctx carrying a fresh trace ID under TraceIDKey.
func WithTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, uuid.NewString())
}

// TraceID returns the trace ID stored in ctx, or an empty string.
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(TraceIDKey).(string)
	return id
}

// WithMigration returns a copy of ctx tagged with the migration file name.
func WithMigration(ctx context.Context, fileName string) context.Context {
	return context.WithValue(ctx, MigrationKey, fileName)
}
