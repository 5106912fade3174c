package logging

import (
	"context"
)

// Context keys for common log fields.
type contextKey string

const (
	// SessionIDKey is the context key for session identifiers.
	SessionIDKey contextKey = "session_id"

	// CallerKey is the context key for the component that opened a session.
	CallerKey contextKey = "caller"

	// BasePathKey is the context key for the log base path being worked on.
	BasePathKey contextKey = "base_path"
)

// contextFields lists the keys extracted by the *Context log methods, in
// output order.
var contextFields = []contextKey{SessionIDKey, CallerKey, BasePathKey}

// WithSessionID adds a session ID to the context.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}

// GetSessionID retrieves the session ID from the context.
func GetSessionID(ctx context.Context) string {
	return stringValue(ctx, SessionIDKey)
}

// WithCaller adds a caller name to the context.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, CallerKey, caller)
}

// GetCaller retrieves the caller name from the context.
func GetCaller(ctx context.Context) string {
	return stringValue(ctx, CallerKey)
}

// WithBasePath adds a base path to the context.
func WithBasePath(ctx context.Context, base string) context.Context {
	return context.WithValue(ctx, BasePathKey, base)
}

// GetBasePath retrieves the base path from the context.
func GetBasePath(ctx context.Context) string {
	return stringValue(ctx, BasePathKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// extractContextFields returns key/value pairs for every non-empty field.
func extractContextFields(ctx context.Context) []any {
	var fields []any
	for _, key := range contextFields {
		if v := stringValue(ctx, key); v != "" {
			fields = append(fields, string(key), v)
		}
	}
	return fields
}
