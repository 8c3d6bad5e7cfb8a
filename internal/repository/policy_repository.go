package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/riftlabs/interlock/internal/domain"
	"github.com/riftlabs/interlock/internal/postgres"
)

const policyTable = "policies"

type policyRow struct {
	SubjectKey                string    `db:"subject_key"`
	MethodKey                 string    `db:"method_key"`
	Enabled                   bool      `db:"enabled"`
	RateLimitPermitsPerSecond *int      `db:"rate_limit_permits_per_second"`
	RateLimitBurst            *int      `db:"rate_limit_burst"`
	RetryMaxAttempts          *int      `db:"retry_max_attempts"`
	RetryBaseBackoffMs        *int      `db:"retry_base_backoff_ms"`
	CacheTTLSeconds           *int      `db:"cache_ttl_seconds"`
	IdempotencyTTLSeconds     *int      `db:"idempotency_ttl_seconds"`
	CreatedAt                 time.Time `db:"created_at"`
	UpdatedAt                 time.Time `db:"updated_at"`
}

func (r *policyRow) toDomain() *domain.Policy {
	return &domain.Policy{
		SubjectKey:                r.SubjectKey,
		MethodKey:                 domain.MethodKey(r.MethodKey),
		Enabled:                   r.Enabled,
		RateLimitPermitsPerSecond: r.RateLimitPermitsPerSecond,
		RateLimitBurst:            r.RateLimitBurst,
		RetryMaxAttempts:          r.RetryMaxAttempts,
		RetryBaseBackoffMs:        r.RetryBaseBackoffMs,
		CacheTTLSeconds:           r.CacheTTLSeconds,
		IdempotencyTTLSeconds:     r.IdempotencyTTLSeconds,
		CreatedAt:                 r.CreatedAt,
		UpdatedAt:                 r.UpdatedAt,
	}
}

// PolicyRepository implements domain.PolicyRepository against Postgres.
// There is no write path here: override rows are managed out of band (an
// admin tool or a migration), the chain only ever reads them.
type PolicyRepository struct {
	pool postgres.Querier
}

// NewPolicyRepository creates a PolicyRepository.
func NewPolicyRepository(pool postgres.Querier) *PolicyRepository {
	return &PolicyRepository{pool: pool}
}

// Find looks up the override row for (subjectKey, methodKey). It returns
// domain.ErrPolicyNotFound, never a nil/nil pair, when there is no row.
func (r *PolicyRepository) Find(ctx context.Context, subjectKey string, methodKey domain.MethodKey) (*domain.Policy, error) {
	selectSQL, args, err := sq().
		Select("subject_key", "method_key", "enabled", "rate_limit_permits_per_second", "rate_limit_burst",
			"retry_max_attempts", "retry_base_backoff_ms", "cache_ttl_seconds", "idempotency_ttl_seconds",
			"created_at", "updated_at").
		From(policyTable).
		Where(squirrel.Eq{"subject_key": subjectKey, "method_key": string(methodKey)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build policy select: %w", err)
	}

	var row policyRow
	if err := pgxscan.Get(ctx, r.pool, &row, selectSQL, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, domain.ErrPolicyNotFound
		}
		return nil, fmt.Errorf("find policy: %w", err)
	}
	return row.toDomain(), nil
}
