package domain

import (
	"context"
	"time"
)

// IdempotencyStatus is the lifecycle state of an IdempotencyRecord.
type IdempotencyStatus string

const (
	IdempotencyPending   IdempotencyStatus = "PENDING"
	IdempotencyCompleted IdempotencyStatus = "COMPLETED"
	IdempotencyFailed    IdempotencyStatus = "FAILED"
)

// IdempotencyRecord is unique by (IdempotencyKey, MethodKey). See §4.3 of
// the interceptor design for the full state machine this row drives.
type IdempotencyRecord struct {
	IdempotencyKey string
	MethodKey      MethodKey

	RequestHash string

	Status       IdempotencyStatus
	ResponseJSON []byte
	ErrorMessage string

	ExpiresAt time.Time
	LockedAt  time.Time
	LockedBy  string // correlation id of the current claim holder, empty if unlocked

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsExpired reports whether the record's TTL has lapsed as of now, meaning
// the next claimant MUST treat it as absent and reset it to PENDING.
func (r *IdempotencyRecord) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && r.ExpiresAt.Before(now)
}

// IdempotencyRepository is the durable store behind the claim protocol. All
// three mutating entry points MUST be atomic at row granularity via a
// pessimistic lock on (idempotencyKey, methodKey).
type IdempotencyRepository interface {
	// AcquireOrGet performs the full §4.3.1 protocol in a single transaction:
	// insert-if-absent, reset-if-expired, claim-if-unlocked-pending, or
	// return-unchanged otherwise.
	AcquireOrGet(ctx context.Context, idempotencyKey string, methodKey MethodKey, requestHash string, ttl time.Duration, ownerID string, now time.Time) (*IdempotencyRecord, error)

	// Get re-reads the current record without mutating it, used by the
	// short-poll loop.
	Get(ctx context.Context, idempotencyKey string, methodKey MethodKey) (*IdempotencyRecord, error)

	// MarkCompleted transitions a PENDING record owned by ownerID to
	// COMPLETED, storing responseJSON and releasing the lock.
	MarkCompleted(ctx context.Context, idempotencyKey string, methodKey MethodKey, ownerID string, responseJSON []byte) error

	// MarkFailed transitions a PENDING record owned by ownerID to FAILED,
	// storing errorMessage and releasing the lock.
	MarkFailed(ctx context.Context, idempotencyKey string, methodKey MethodKey, ownerID string, errorMessage string) error

	// DeleteExpired bulk-deletes rows whose ExpiresAt is in the past,
	// returning the number of rows removed. Used by the cleanup job.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
