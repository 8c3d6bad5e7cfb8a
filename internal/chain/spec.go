// Package chain implements the five-stage interceptor chain — Audit,
// Idempotency, Cache, RateLimit, Retry — wrapped outer-to-inner around a
// business operation. Every operation registers an OperationSpec; the
// chain reads it once at wrap time and re-derives effective parameters
// per call from the policy store.
package chain

import (
	"github.com/riftlabs/interlock/internal/domain"
	apperrors "github.com/riftlabs/interlock/internal/errors"
)

// CacheScope controls how the cache stage's lookup key incorporates the
// caller identity.
type CacheScope string

const (
	// ScopeGlobal shares one cache entry across all callers of an operation
	// for a given set of arguments.
	ScopeGlobal CacheScope = "GLOBAL"
	// ScopeSubject partitions cache entries by resolved subject key.
	ScopeSubject CacheScope = "SUBJECT"
)

const (
	minIdempotencyTTLSeconds     = 60
	maxIdempotencyTTLSeconds     = 7 * 24 * 3600
	defaultIdempotencyTTLSeconds = 24 * 3600

	minCacheTTLSeconds = 1
	maxCacheTTLSeconds = 3600

	minPermitsPerSecond = 1
	maxPermitsPerSecond = 100000

	minRetryAttempts  = 1
	maxRetryAttempts  = 20
	minRetryBackoffMs = 0
	maxRetryBackoffMs = 60000
)

// AuditSpec configures the audit stage for one operation (§4.2). A nil
// *AuditSpec, or one with Enabled false, disables recording entirely for
// that operation — the inner stages still run, only the audit row is
// skipped.
type AuditSpec struct {
	Enabled           bool
	CaptureArgs       bool
	CaptureResult     bool
	CaptureStacktrace bool
	MaxPayloadChars   int
}

func (s *AuditSpec) effectiveMaxPayloadChars(stageDefault int) int {
	if s.MaxPayloadChars <= 0 {
		return stageDefault
	}
	return s.MaxPayloadChars
}

// IdempotencySpec configures the idempotency stage for one operation. A
// nil *IdempotencySpec on an OperationSpec disables the stage entirely.
type IdempotencySpec struct {
	RequireKey                 bool
	ConflictOnDifferentRequest bool
	RejectInFlight             bool
	TTLSeconds                 int
}

func (s *IdempotencySpec) effectiveTTLSeconds(override *int) int {
	ttl := s.TTLSeconds
	if ttl <= 0 {
		ttl = defaultIdempotencyTTLSeconds
	}
	if override != nil {
		ttl = *override
	}
	return clampInt(ttl, minIdempotencyTTLSeconds, maxIdempotencyTTLSeconds)
}

// CacheSpec configures the cache stage for one operation. A nil
// *CacheSpec, or an operation whose return type is unit/void, disables the
// stage entirely (§4.4).
type CacheSpec struct {
	Name       string
	TTLSeconds int
	Scope      CacheScope
}

func (s *CacheSpec) effectiveTTLSeconds(override *int) (int, bool) {
	ttl := s.TTLSeconds
	if override != nil {
		ttl = *override
	}
	if ttl == 0 {
		return 0, false
	}
	return clampInt(ttl, minCacheTTLSeconds, maxCacheTTLSeconds), true
}

// RateLimitSpec configures the rate-limit stage for one operation.
type RateLimitSpec struct {
	PermitsPerSecond int
	Burst            int
}

func (s *RateLimitSpec) effectivePermits(permitsOverride, burstOverride *int) int {
	permits := s.PermitsPerSecond
	if permitsOverride != nil {
		permits = *permitsOverride
	}
	permits = clampInt(permits, minPermitsPerSecond, maxPermitsPerSecond)

	burst := s.Burst
	if burstOverride != nil {
		burst = *burstOverride
	}
	if burst > 0 && burst > permits {
		return burst
	}
	return max(1, permits)
}

// RetrySpec configures the retry stage for one operation. RetryOn/IgnoreOn
// default to the spec-mandated safe set when left empty: generic runtime
// failures are retried, validation/authorization/conflict kinds are not.
type RetrySpec struct {
	MaxAttempts   int
	BaseBackoffMs int
	RetryOn       []apperrors.Kind
	IgnoreOn      []apperrors.Kind
}

var defaultRetryOn = []apperrors.Kind{apperrors.KindInternal}

var defaultIgnoreOn = []apperrors.Kind{
	apperrors.KindBadRequest,
	apperrors.KindValidation,
	apperrors.KindKeyPayloadConflict,
	apperrors.KindKeyPreviousFailed,
	apperrors.KindKeyInFlight,
	apperrors.KindMissingIdempotencyKey,
}

func (s *RetrySpec) effectiveMaxAttempts(override *int) int {
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	if override != nil {
		attempts = *override
	}
	return clampInt(attempts, minRetryAttempts, maxRetryAttempts)
}

func (s *RetrySpec) effectiveBaseBackoffMs(override *int) int {
	backoff := s.BaseBackoffMs
	if override != nil {
		backoff = *override
	}
	return clampInt(backoff, minRetryBackoffMs, maxRetryBackoffMs)
}

func (s *RetrySpec) retryOn() []apperrors.Kind {
	if len(s.RetryOn) == 0 {
		return defaultRetryOn
	}
	return s.RetryOn
}

func (s *RetrySpec) ignoreOn() []apperrors.Kind {
	if len(s.IgnoreOn) == 0 {
		return defaultIgnoreOn
	}
	return s.IgnoreOn
}

// OperationSpec is the static, per-operation configuration the chain wraps
// a handler with. TargetType is the qualified type name used both in
// MethodKey construction and as the audit row's TargetType.
type OperationSpec struct {
	MethodKey  domain.MethodKey
	TargetType string

	Audit       *AuditSpec
	Idempotency *IdempotencySpec
	Cache       *CacheSpec
	RateLimit   *RateLimitSpec
	Retry       *RetrySpec
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
