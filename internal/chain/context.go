package chain

import (
	"context"

	"github.com/riftlabs/interlock/internal/domain"
)

type contextKey string

const (
	correlationIDKey contextKey = "interlock.correlation_id"
	subjectKey       contextKey = "interlock.subject"
	idempotencyKeyCtxKey contextKey = "interlock.idempotency_key"
)

// WithCorrelationID attaches the request's correlation id to ctx. The
// idempotency stage uses it as the lock owner id (§4.3.1): ownership is
// asserted by correlation id, never by the idempotency key itself.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext returns the correlation id stored on ctx, or ""
// if none was attached.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// WithSubject attaches the resolved caller subject to ctx.
func WithSubject(ctx context.Context, s domain.Subject) context.Context {
	return context.WithValue(ctx, subjectKey, s)
}

// SubjectFromContext returns the resolved subject, or domain.Unknown if
// none was attached.
func SubjectFromContext(ctx context.Context) domain.Subject {
	s, ok := ctx.Value(subjectKey).(domain.Subject)
	if !ok {
		return domain.Unknown
	}
	return s
}

// WithIdempotencyKey attaches the raw (already-trimmed) inbound
// idempotency key to ctx.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyCtxKey, key)
}

// IdempotencyKeyFromContext returns the idempotency key stored on ctx, or
// "" if none was attached.
func IdempotencyKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKeyCtxKey).(string)
	return key
}
