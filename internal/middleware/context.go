// Package middleware provides HTTP middleware for the platform API.
package middleware

import "context"

type contextKey string

const (
	userIDKey  contextKey = "user_id"
	roleKey    contextKey = "role"
	traceIDKey contextKey = "trace_id"
)

// GetUserID extracts the authenticated user ID from context.
func GetUserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// GetUserRole extracts the authenticated user role from context.
func GetUserRole(ctx context.Context) string {
	role, _ := ctx.Value(roleKey).(string)
	return role
}

// GetTraceID extracts the request trace ID from context.
func GetTraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// WithUser returns a context carrying the given identity. Exposed for handler
// tests that bypass the auth middleware.
func WithUser(ctx context.Context, userID, role string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, roleKey, role)
}
