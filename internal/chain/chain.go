package chain

import "github.com/riftlabs/interlock/internal/config"

// Chain composes the five stages, outer-to-inner, around a business
// handler. Construction order is fixed: Audit, Idempotency, Cache,
// RateLimit, Retry (§2, §4.1) — Wrap always applies them in that order
// regardless of the order Chain's fields are set, so there is no way to
// accidentally misorder the stack at a call site.
type Chain struct {
	cfg         config.ChainConfig
	audit       *AuditStage
	idempotency *IdempotencyStage
	cache       *CacheStage
	rateLimit   *RateLimitStage
	retry       *RetryStage
}

// New creates a Chain from its five stages. Any stage may be nil, in which
// case Wrap skips it — useful for tests that only care about one stage.
func New(cfg config.ChainConfig, audit *AuditStage, idempotency *IdempotencyStage, cache *CacheStage, rateLimit *RateLimitStage, retry *RetryStage) *Chain {
	return &Chain{
		cfg:         cfg,
		audit:       audit,
		idempotency: idempotency,
		cache:       cache,
		rateLimit:   rateLimit,
		retry:       retry,
	}
}

// Wrap builds the fully composed Handler for spec around handler. If the
// chain is disabled globally, or spec.TargetType matches one of the
// configured exclude prefixes, handler is returned unwrapped.
func (c *Chain) Wrap(spec OperationSpec, handler Handler) Handler {
	if !c.cfg.Enabled || c.isExcluded(spec.TargetType) {
		return handler
	}

	wrapped := handler
	if c.retry != nil {
		wrapped = c.retry.Wrap(spec, wrapped)
	}
	if c.rateLimit != nil {
		wrapped = c.rateLimit.Wrap(spec, wrapped)
	}
	if c.cache != nil {
		wrapped = c.cache.Wrap(spec, wrapped)
	}
	if c.idempotency != nil {
		wrapped = c.idempotency.Wrap(spec, wrapped)
	}
	if c.audit != nil {
		wrapped = c.audit.Wrap(spec, wrapped)
	}
	return wrapped
}

func (c *Chain) isExcluded(targetType string) bool {
	for _, prefix := range c.cfg.ExcludePackages {
		if prefix == "" {
			continue
		}
		if len(targetType) >= len(prefix) && targetType[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
