// Package domain provides core payment types, the error taxonomy and
// request-scoped context helpers for payrecon.
package domain

import "context"

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	// requestIDContextKey stores the request ID for tracing.
	requestIDContextKey contextKey = iota

	// authTokenContextKey stores the caller's opaque Authorization header.
	authTokenContextKey
)

// --- Request ID Context Helpers ---

// NewContextWithRequestID returns a new context with the request ID attached.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey).(string)
	return requestID
}

// --- Auth Token Context Helpers ---

// NewContextWithAuthToken attaches the caller's Authorization header value.
// The token is never inspected here; it is carried for downstream collaborators.
func NewContextWithAuthToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, authTokenContextKey, token)
}

// AuthTokenFromContext returns the opaque token, or "" when none was supplied.
func AuthTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(authTokenContextKey).(string)
	return token
}
