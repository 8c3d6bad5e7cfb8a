package domain

import "errors"

// Domain-level sentinels for the interceptor core. These represent outcomes
// of internal protocols, not transport-facing error kinds; the errors
// package maps a subset of these (plus its own AppError kinds) onto HTTP
// responses.
var (
	// ErrPolicyNotFound is returned by the policy repository when no override
	// row exists for a (subjectKey, methodKey) pair. The policy store treats
	// this as a cacheable "absent" result, not a failure.
	ErrPolicyNotFound = errors.New("policy: no override for subject/method pair")

	// ErrIdempotencyRecordNotFound is returned by a plain lookup (not an
	// acquire) that finds no row for (idempotencyKey, methodKey).
	ErrIdempotencyRecordNotFound = errors.New("idempotency: record not found")

	// ErrIdempotencyKeyInFlight is raised when the short-poll budget is
	// exhausted and the record is still PENDING under another owner.
	ErrIdempotencyKeyInFlight = errors.New("idempotency: key still in flight")

	// ErrIdempotencyPayloadConflict is raised when a reused key is attached
	// to a request hash different from the one on record.
	ErrIdempotencyPayloadConflict = errors.New("idempotency: key reused with different payload")

	// ErrIdempotencyPreviousFailed is raised when a terminal FAILED record is
	// found and the caller attempts to reuse the same key.
	ErrIdempotencyPreviousFailed = errors.New("idempotency: previous attempt failed")

	// ErrRateLimited is raised by the rate-limit stage when the limiter for
	// the calling triple denies acquisition.
	ErrRateLimited = errors.New("rate limit: acquisition denied")

	// ErrMissingIdempotencyKey is raised when IdempotencySpec.RequireKey is
	// set and no key is present on the inbound request.
	ErrMissingIdempotencyKey = errors.New("idempotency: key required but absent")

	// ErrStoredResponseUnreadable is raised when a COMPLETED record's
	// ResponseJSON cannot be decoded into the operation's return type.
	ErrStoredResponseUnreadable = errors.New("idempotency: stored response could not be decoded")
)
