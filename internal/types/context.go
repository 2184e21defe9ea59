package types

import (
	"context"
)

// UserIdentity is the caller resolved from a bearer credential. ID is the
// stable account identifier used as the key for plans and usage.
type UserIdentity struct {
	ID    string
	Email string
}

// Context Keys
type contextKey string

const (
	identityKey  contextKey = "identity"
	requestIDKey contextKey = "request_id"
	loggerKey    contextKey = "logger"
)

// WithIdentity stores the resolved caller in the context.
func WithIdentity(ctx context.Context, identity UserIdentity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// GetIdentity retrieves the resolved caller from the context.
func GetIdentity(ctx context.Context) (UserIdentity, bool) {
	identity, ok := ctx.Value(identityKey).(UserIdentity)
	return identity, ok
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithLogger stores a Logger in the context.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext retrieves the Logger from the context.
// Returns nil if no logger has been set.
func LoggerFromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return nil
}
