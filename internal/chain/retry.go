package chain

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/riftlabs/interlock/internal/domain"
	apperrors "github.com/riftlabs/interlock/internal/errors"
	"github.com/riftlabs/interlock/internal/observability"
	"github.com/riftlabs/interlock/internal/policy"
)

// RetryStage wraps the innermost call with bounded retry and exponential
// backoff plus jitter (§4.6). Because it is innermost, a retried attempt
// re-executes only the handler body — it never re-enters Cache,
// Idempotency, RateLimit, or Audit.
type RetryStage struct {
	policy  *policy.Store
	metrics *observability.MetricsCollector
}

// NewRetryStage creates a RetryStage.
func NewRetryStage(policyStore *policy.Store, metrics *observability.MetricsCollector) *RetryStage {
	return &RetryStage{policy: policyStore, metrics: metrics}
}

// Wrap applies the retry stage. No-op when spec.Retry is nil.
func (s *RetryStage) Wrap(spec OperationSpec, next Handler) Handler {
	if spec.Retry == nil {
		return next
	}

	return func(ctx context.Context, args any) (any, error) {
		if policyBypassed(ctx, s.policy, spec.MethodKey) {
			return next(ctx, args)
		}

		attemptsOverride, backoffOverride := s.overrides(ctx, spec.MethodKey)
		maxAttempts := spec.Retry.effectiveMaxAttempts(attemptsOverride)
		baseBackoffMs := spec.Retry.effectiveBaseBackoffMs(backoffOverride)
		retryOn := spec.Retry.retryOn()
		ignoreOn := spec.Retry.ignoreOn()

		var lastErr error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			result, err := next(ctx, args)
			if err == nil {
				s.metrics.RecordRetryAttempt(spec.MethodKey.Short())
				return result, nil
			}
			lastErr = err

			if attempt == maxAttempts || !shouldRetry(err, retryOn, ignoreOn) {
				break
			}

			delay := backoffWithJitter(baseBackoffMs, attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		s.metrics.RecordRetryExhausted(spec.MethodKey.Short())
		return nil, lastErr
	}
}

// shouldRetry matches the root cause of err against retryOn/ignoreOn,
// unwinding the chain of underlying errors and stopping at the first
// self-cycle (errors.Unwrap returning the same error it was given).
func shouldRetry(err error, retryOn, ignoreOn []apperrors.Kind) bool {
	kind, ok := rootKind(err)
	if !ok {
		return false
	}
	for _, k := range ignoreOn {
		if k == kind {
			return false
		}
	}
	for _, k := range retryOn {
		if k == kind {
			return true
		}
	}
	return false
}

func rootKind(err error) (apperrors.Kind, bool) {
	var kind apperrors.Kind
	found := false
	seen := err
	for seen != nil {
		if appErr, ok := seen.(*apperrors.AppError); ok {
			kind, found = appErr.Kind, true
		}
		next := errors.Unwrap(seen)
		if next == nil || next == seen {
			break
		}
		seen = next
	}
	if found {
		return kind, true
	}
	return kindFromDomainSentinel(err)
}

// kindFromDomainSentinel classifies the domain sentinels a stage may raise
// directly (without wrapping them in an AppError) into the same Kind space
// the retry stage reasons about.
func kindFromDomainSentinel(err error) (apperrors.Kind, bool) {
	switch {
	case errors.Is(err, domain.ErrMissingIdempotencyKey):
		return apperrors.KindMissingIdempotencyKey, true
	case errors.Is(err, domain.ErrIdempotencyPayloadConflict):
		return apperrors.KindKeyPayloadConflict, true
	case errors.Is(err, domain.ErrIdempotencyPreviousFailed):
		return apperrors.KindKeyPreviousFailed, true
	case errors.Is(err, domain.ErrIdempotencyKeyInFlight):
		return apperrors.KindKeyInFlight, true
	case errors.Is(err, domain.ErrRateLimited):
		return apperrors.KindRateLimited, true
	case errors.Is(err, domain.ErrStoredResponseUnreadable):
		return apperrors.KindStoredResponseUnreadable, true
	case errors.Is(err, apperrors.ErrValidation):
		return apperrors.KindValidation, true
	default:
		return apperrors.KindInternal, true
	}
}

func backoffWithJitter(baseBackoffMs, attempt int) time.Duration {
	base := time.Duration(baseBackoffMs) * time.Millisecond
	exp := base << (attempt - 1)
	jitterFactor := 0.8 + rand.Float64()*0.4 // ±20%
	return time.Duration(float64(exp) * jitterFactor)
}

func (s *RetryStage) overrides(ctx context.Context, methodKey domain.MethodKey) (*int, *int) {
	if s.policy == nil {
		return nil, nil
	}
	p, err := s.policy.Find(ctx, SubjectFromContext(ctx).Key(), methodKey)
	if err != nil || !p.Enabled {
		return nil, nil
	}
	return p.RetryMaxAttempts, p.RetryBaseBackoffMs
}
