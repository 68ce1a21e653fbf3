// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// This package defines context keys and getter/setter functions for values that are
// typically set by middleware but consumed by services. By keeping this package free
// of net/http dependencies, services can import only what they need without pulling
// in HTTP-related code.
//
// Usage in services (read values):
//
//	owner := requestcontext.Owner(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithOwner(ctx, owner)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.9", "curl/8.0")
package requestcontext

import (
	"context"
	"time"

	id "geoseal/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	ownerKey       struct{}
	deviceKey      struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyOwner       = ownerKey{}
	ContextKeyDevice      = deviceKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Auth context
// -----------------------------------------------------------------------------

// Owner retrieves the authenticated owner identity from the context.
// Returns the zero value (empty) if not set.
func Owner(ctx context.Context) id.OwnerID {
	if owner, ok := ctx.Value(ContextKeyOwner).(id.OwnerID); ok {
		return owner
	}
	return ""
}

// WithOwner injects an owner identity into the context.
func WithOwner(ctx context.Context, owner id.OwnerID) context.Context {
	return context.WithValue(ctx, ContextKeyOwner, owner)
}

// -----------------------------------------------------------------------------
// Client metadata (device, IP, User-Agent)
// -----------------------------------------------------------------------------

// Device retrieves the parsed device description (browser and OS family)
// from the context.
func Device(ctx context.Context) string {
	if device, ok := ctx.Value(ContextKeyDevice).(string); ok {
		return device
	}
	return ""
}

// WithDevice injects a device description into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, ContextKeyDevice, device)
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
// The metadata middleware calls it once per request; tests that skip the
// middleware chain can call it directly to fake a client.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return ctx
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context. Every timestamp taken
// while handling one request then agrees with the others. Falls back to
// time.Now() when unset, so workers and tests share the same call path.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. The request-time
// middleware stamps it once per request; tests use it to pin the clock.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
