// Package policy provides a read-through, negatively-cached view over the
// per-(subject, method) policy override table (§4.9).
package policy

import (
	"context"
	"errors"
	"time"

	go_cache "github.com/patrickmn/go-cache"

	"github.com/riftlabs/interlock/internal/cache"
	"github.com/riftlabs/interlock/internal/domain"
)

const ttl = 30 * time.Second

// absent is the negative-cache sentinel stored for a confirmed miss, so a
// repeated lookup for the same (subjectKey, methodKey) pair doesn't
// stampede the repository.
var absent = &domain.Policy{}

// Store reads through to a domain.PolicyRepository, caching both hits and
// misses for ttl.
type Store struct {
	repo    domain.PolicyRepository
	entries *go_cache.Cache
}

// NewStore creates a Store. cacheManager is the shared cache.Manager so the
// policy cache participates in the same materialization discipline as the
// cache stage's named caches.
func NewStore(repo domain.PolicyRepository, cacheManager *cache.Manager) *Store {
	return &Store{
		repo:    repo,
		entries: cacheManager.GetCache(cache.CacheName("policy-store", int(ttl.Seconds()))),
	}
}

// Find returns the policy override for (subjectKey, methodKey), or
// domain.ErrPolicyNotFound if none exists. The result of either outcome is
// cached for 30 seconds.
func (s *Store) Find(ctx context.Context, subjectKey string, methodKey domain.MethodKey) (*domain.Policy, error) {
	key := subjectKey + "|" + string(methodKey)

	if cached, found := s.entries.Get(key); found {
		policy := cached.(*domain.Policy)
		if policy == absent {
			return nil, domain.ErrPolicyNotFound
		}
		return policy, nil
	}

	policy, err := s.repo.Find(ctx, subjectKey, methodKey)
	if err != nil {
		if errors.Is(err, domain.ErrPolicyNotFound) {
			s.entries.SetDefault(key, absent)
			return nil, domain.ErrPolicyNotFound
		}
		return nil, err
	}

	s.entries.SetDefault(key, policy)
	return policy, nil
}
