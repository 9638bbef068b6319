// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// This package defines context keys and getter/setter functions for values that are
// typically set by middleware but consumed by services. By keeping this package free
// of net/http dependencies, services can import only what they need without pulling
// in HTTP-related code.
//
// Usage in services (read values):
//
//	actorID := requestcontext.ActorID(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithActor(ctx, adminID, "admin")
package requestcontext

import (
	"context"
	"time"

	id "coinledger/pkg/domain"
)

type (
	actorIDKey     struct{}
	actorRoleKey   struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	actorDeviceKey struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyActorID     = actorIDKey{}
	ContextKeyActorRole   = actorRoleKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
	ContextKeyActorDevice = actorDeviceKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Actor (authenticated caller)
// -----------------------------------------------------------------------------

// ActorID retrieves the authenticated actor from the context.
// Returns the zero value (nil UUID) if not set.
func ActorID(ctx context.Context) id.UserID {
	if actorID, ok := ctx.Value(ContextKeyActorID).(id.UserID); ok {
		return actorID
	}
	return id.UserID{}
}

// ActorRole retrieves the authenticated actor's role (tier).
func ActorRole(ctx context.Context) string {
	if role, ok := ctx.Value(ContextKeyActorRole).(string); ok {
		return role
	}
	return ""
}

// WithActor injects the authenticated actor and role into the context.
func WithActor(ctx context.Context, actorID id.UserID, role string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyActorID, actorID)
	return context.WithValue(ctx, ContextKeyActorRole, role)
}

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent, device)
// -----------------------------------------------------------------------------

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the raw User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// ActorDevice retrieves the parsed device summary (e.g. "Firefox 121 on Linux").
func ActorDevice(ctx context.Context) string {
	if device, ok := ctx.Value(ContextKeyActorDevice).(string); ok {
		return device
	}
	return ""
}

// WithClientMetadata injects client IP, User-Agent and device summary into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent, device string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return context.WithValue(ctx, ContextKeyActorDevice, device)
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

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like workers and tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
