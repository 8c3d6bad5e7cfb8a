package http_test

import (
	"context"
	"sync"
	"time"

	"github.com/riftlabs/interlock/internal/domain"
	"github.com/riftlabs/interlock/internal/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger("dev", "interlock-test")
}

// fakeIdempotencyRepository is an in-memory stand-in for the Postgres-backed
// repository, sufficient to exercise the full claim protocol (§4.3) in
// router/handler tests without a database.
type fakeIdempotencyRepository struct {
	mu      sync.Mutex
	records map[string]*domain.IdempotencyRecord
}

func newFakeIdempotencyRepository() *fakeIdempotencyRepository {
	return &fakeIdempotencyRepository{records: make(map[string]*domain.IdempotencyRecord)}
}

func recordKey(key string, methodKey domain.MethodKey) string {
	return key + "|" + string(methodKey)
}

func (r *fakeIdempotencyRepository) AcquireOrGet(_ context.Context, idempotencyKey string, methodKey domain.MethodKey, requestHash string, ttl time.Duration, ownerID string, now time.Time) (*domain.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := recordKey(idempotencyKey, methodKey)
	existing, ok := r.records[k]
	if !ok || existing.IsExpired(now) {
		rec := &domain.IdempotencyRecord{
			IdempotencyKey: idempotencyKey,
			MethodKey:      methodKey,
			RequestHash:    requestHash,
			Status:         domain.IdempotencyPending,
			ExpiresAt:      now.Add(ttl),
			LockedAt:       now,
			LockedBy:       ownerID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		r.records[k] = rec
		copied := *rec
		return &copied, nil
	}

	copied := *existing
	return &copied, nil
}

func (r *fakeIdempotencyRepository) Get(_ context.Context, idempotencyKey string, methodKey domain.MethodKey) (*domain.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[recordKey(idempotencyKey, methodKey)]
	if !ok {
		return nil, domain.ErrIdempotencyRecordNotFound
	}
	copied := *rec
	return &copied, nil
}

func (r *fakeIdempotencyRepository) MarkCompleted(_ context.Context, idempotencyKey string, methodKey domain.MethodKey, ownerID string, responseJSON []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[recordKey(idempotencyKey, methodKey)]
	if !ok {
		return domain.ErrIdempotencyRecordNotFound
	}
	rec.Status = domain.IdempotencyCompleted
	rec.ResponseJSON = responseJSON
	rec.LockedBy = ""
	rec.UpdatedAt = time.Now()
	_ = ownerID
	return nil
}

func (r *fakeIdempotencyRepository) MarkFailed(_ context.Context, idempotencyKey string, methodKey domain.MethodKey, ownerID string, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[recordKey(idempotencyKey, methodKey)]
	if !ok {
		return domain.ErrIdempotencyRecordNotFound
	}
	rec.Status = domain.IdempotencyFailed
	rec.ErrorMessage = errorMessage
	rec.LockedBy = ""
	rec.UpdatedAt = time.Now()
	_ = ownerID
	return nil
}

func (r *fakeIdempotencyRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for k, rec := range r.records {
		if rec.IsExpired(now) {
			delete(r.records, k)
			deleted++
		}
	}
	return deleted, nil
}

// fakeAuditRepository records every audit row in memory.
type fakeAuditRepository struct {
	mu   sync.Mutex
	rows []*domain.AuditRow
}

func newFakeAuditRepository() *fakeAuditRepository {
	return &fakeAuditRepository{}
}

func (r *fakeAuditRepository) Create(_ context.Context, row *domain.AuditRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, row)
	return nil
}

func (r *fakeAuditRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kept []*domain.AuditRow
	var deleted int64
	for _, row := range r.rows {
		if row.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	r.rows = kept
	return deleted, nil
}

// fakePolicyRepository has no overrides by default — every lookup reports
// domain.ErrPolicyNotFound, exercising the policy store's negative cache.
type fakePolicyRepository struct{}

func (fakePolicyRepository) Find(_ context.Context, _ string, _ domain.MethodKey) (*domain.Policy, error) {
	return nil, domain.ErrPolicyNotFound
}
