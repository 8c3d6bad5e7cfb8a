package chain

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/riftlabs/interlock/internal/domain"
	apperrors "github.com/riftlabs/interlock/internal/errors"
	"github.com/riftlabs/interlock/internal/observability"
	"github.com/riftlabs/interlock/internal/policy"
)

// RateLimitStage enforces an approximate local token bucket keyed by
// (methodKey, subjectType, limitForPeriod), deliberately not by subject
// identity, to bound limiter cardinality (§4.5).
type RateLimitStage struct {
	policy   *policy.Store
	metrics  *observability.MetricsCollector
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimitStage creates a RateLimitStage.
func NewRateLimitStage(policyStore *policy.Store, metrics *observability.MetricsCollector) *RateLimitStage {
	return &RateLimitStage{
		policy:   policyStore,
		metrics:  metrics,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wrap applies the rate-limit stage. No-op when spec.RateLimit is nil.
func (s *RateLimitStage) Wrap(spec OperationSpec, next Handler) Handler {
	if spec.RateLimit == nil {
		return next
	}

	return func(ctx context.Context, args any) (any, error) {
		if policyBypassed(ctx, s.policy, spec.MethodKey) {
			return next(ctx, args)
		}

		subj := SubjectFromContext(ctx)
		permitsOverride, burstOverride := s.overrides(ctx, spec.MethodKey)
		limitForPeriod := spec.RateLimit.effectivePermits(permitsOverride, burstOverride)

		limiterKey := fmt.Sprintf("%s|%s|%d", spec.MethodKey, subj.Kind, limitForPeriod)
		limiter := s.limiterFor(limiterKey, limitForPeriod)

		if !limiter.Allow() {
			s.metrics.RecordRateLimitRejection(spec.MethodKey.Short(), string(subj.Kind))
			return nil, (apperrors.New(ctx, apperrors.KindRateLimited, "rate limit exceeded")).WithRetryAfter(1)
		}

		return next(ctx, args)
	}
}

func (s *RateLimitStage) limiterFor(key string, limitForPeriod int) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limiter, ok := s.limiters[key]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(rate.Limit(limitForPeriod), limitForPeriod)
	s.limiters[key] = limiter
	return limiter
}

func (s *RateLimitStage) overrides(ctx context.Context, methodKey domain.MethodKey) (*int, *int) {
	if s.policy == nil {
		return nil, nil
	}
	p, err := s.policy.Find(ctx, SubjectFromContext(ctx).Key(), methodKey)
	if err != nil || !p.Enabled {
		return nil, nil
	}
	return p.RateLimitPermitsPerSecond, p.RateLimitBurst
}
