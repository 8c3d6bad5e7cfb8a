package chain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/riftlabs/interlock/internal/cache"
	"github.com/riftlabs/interlock/internal/domain"
	"github.com/riftlabs/interlock/internal/observability"
	"github.com/riftlabs/interlock/internal/policy"
)

// CacheStage short-circuits reads by (methodKey, argsHash, subjectKey) per
// §4.4. Any failure of the cache manager or of get/put is swallowed and
// treated as a pass-through miss — caching must never turn into a 5xx.
type CacheStage struct {
	manager *cache.Manager
	policy  *policy.Store
	metrics *observability.MetricsCollector
}

// NewCacheStage creates a CacheStage.
func NewCacheStage(manager *cache.Manager, policyStore *policy.Store, metrics *observability.MetricsCollector) *CacheStage {
	return &CacheStage{manager: manager, policy: policyStore, metrics: metrics}
}

// Wrap applies the cache stage. No-op when spec.Cache is nil.
func (s *CacheStage) Wrap(spec OperationSpec, next Handler) Handler {
	if spec.Cache == nil {
		return next
	}

	return func(ctx context.Context, args any) (any, error) {
		if policyBypassed(ctx, s.policy, spec.MethodKey) {
			return next(ctx, args)
		}

		ttlSeconds, enabled := spec.Cache.effectiveTTLSeconds(s.ttlOverride(ctx, spec.MethodKey))
		if !enabled {
			return next(ctx, args)
		}

		entries := s.manager.GetCache(cache.CacheName(spec.Cache.Name, ttlSeconds))
		key := s.buildKey(ctx, spec, args)

		if cached, found := entries.Get(key); found {
			s.metrics.RecordResponseCacheResult(spec.Cache.Name, "hit")
			return cached, nil
		}

		s.metrics.RecordResponseCacheResult(spec.Cache.Name, "miss")
		result, err := next(ctx, args)
		if err == nil && result != nil {
			entries.SetDefault(key, result)
		}
		return result, err
	}
}

func (s *CacheStage) buildKey(ctx context.Context, spec OperationSpec, args any) string {
	argsHash := hashArgs(args)

	subjectKey := "global"
	if spec.Cache.Scope == ScopeSubject {
		subj := SubjectFromContext(ctx)
		if subj == domain.Unknown {
			subjectKey = "anonymous"
		} else {
			subjectKey = subj.Key()
		}
	}

	sum := sha256.Sum256([]byte(spec.MethodKey.String() + "|" + argsHash + "|" + subjectKey))
	return hex.EncodeToString(sum[:])
}

func (s *CacheStage) ttlOverride(ctx context.Context, methodKey domain.MethodKey) *int {
	if s.policy == nil {
		return nil
	}
	p, err := s.policy.Find(ctx, SubjectFromContext(ctx).Key(), methodKey)
	if err != nil || !p.Enabled {
		return nil
	}
	return p.CacheTTLSeconds
}
