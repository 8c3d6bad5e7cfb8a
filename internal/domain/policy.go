package domain

import (
	"context"
	"time"
)

// Policy is an optional per-(subjectKey, methodKey) override row. Any
// pointer field left nil falls back to the stage's spec-level default or
// configured default; Enabled=false bypasses every stage except Audit for
// this pair.
type Policy struct {
	SubjectKey string
	MethodKey  MethodKey

	Enabled bool

	RateLimitPermitsPerSecond *int
	RateLimitBurst            *int
	RetryMaxAttempts          *int
	RetryBaseBackoffMs        *int
	CacheTTLSeconds           *int
	IdempotencyTTLSeconds     *int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PolicyRepository is the storage contract the policy store reads through.
// A miss MUST be reported as ErrPolicyNotFound, not a nil/nil pair, so the
// store can tell "absent" apart from "not yet looked up".
type PolicyRepository interface {
	Find(ctx context.Context, subjectKey string, methodKey MethodKey) (*Policy, error)
}
