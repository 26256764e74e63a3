package domain

import (
	"context"
	"testing"
)

func TestRequestIDContext(t *testing.T) {
	t.Run("RequestIDFromContext returns empty string when no request ID", func(t *testing.T) {
		ctx := context.Background()
		requestID := RequestIDFromContext(ctx)
		if requestID != "" {
			t.Errorf("expected empty string, got %q", requestID)
		}
	})

	t.Run("RequestIDFromContext returns request ID when set", func(t *testing.T) {
		ctx := context.Background()
		expected := "req-12345"
		ctx = NewContextWithRequestID(ctx, expected)

		requestID := RequestIDFromContext(ctx)
		if requestID != expected {
			t.Errorf("expected %q, got %q", expected, requestID)
		}
	})
}

func TestAuthTokenContext(t *testing.T) {
	t.Run("AuthTokenFromContext returns empty string when no token", func(t *testing.T) {
		if got := AuthTokenFromContext(context.Background()); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})

	t.Run("token is carried untouched", func(t *testing.T) {
		ctx := NewContextWithAuthToken(context.Background(), "Bearer  not-validated ")
		if got := AuthTokenFromContext(ctx); got != "Bearer  not-validated " {
			t.Errorf("expected token unchanged, got %q", got)
		}
	})
}

func TestMultipleContextValues(t *testing.T) {
	t.Run("multiple values can coexist in context", func(t *testing.T) {
		ctx := context.Background()
		ctx = NewContextWithRequestID(ctx, "req-abc123")
		ctx = NewContextWithAuthToken(ctx, "Bearer abc")

		if got := RequestIDFromContext(ctx); got != "req-abc123" {
			t.Errorf("expected request ID %q, got %q", "req-abc123", got)
		}
		if got := AuthTokenFromContext(ctx); got != "Bearer abc" {
			t.Errorf("expected token %q, got %q", "Bearer abc", got)
		}
	})
}
