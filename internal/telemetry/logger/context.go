package logger

import "context"

type contextKey string

const (
	loggerKey     contextKey = "lobbysync.logger"
	mutationIDKey contextKey = "lobbysync.mutation_id"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context, or the default logger.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithMutationID tags the context with the id of the queued mutation it serves.
func WithMutationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, mutationIDKey, id)
}

// MutationIDFromContext extracts the mutation id from context.
func MutationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(mutationIDKey).(string); ok {
		return id
	}
	return ""
}

// L returns the context's logger bound to ctx.
func L(ctx context.Context) Logger {
	return FromContext(ctx).WithContext(ctx)
}
