// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services and the audit emitter read them without
// importing net/http.
//
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//	client := requestcontext.Client(ctx)
package requestcontext

import (
	"context"
	"time"
)

type (
	clientKey      struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// ClientMetadata describes the caller as seen by the edge middleware.
type ClientMetadata struct {
	IP        string
	UserAgent string
	Browser   string
	OS        string
	Bot       bool
}

// -----------------------------------------------------------------------------
// Client metadata
// -----------------------------------------------------------------------------

// Client retrieves caller metadata from the context.
func Client(ctx context.Context) ClientMetadata {
	if c, ok := ctx.Value(clientKey{}).(ClientMetadata); ok {
		return c
	}
	return ClientMetadata{}
}

// WithClient injects caller metadata into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithClient(ctx context.Context, c ClientMetadata) context.Context {
	return context.WithValue(ctx, clientKey{}, c)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like workers and tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
