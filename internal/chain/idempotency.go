package chain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/riftlabs/interlock/internal/domain"
	"github.com/riftlabs/interlock/internal/observability"
	"github.com/riftlabs/interlock/internal/policy"
)

const (
	maxIdempotencyKeyLength = 128

	shortPollStep   = 200 * time.Millisecond
	shortPollBudget = 2 * time.Second
)

// IdempotencyStage implements the §4.3 claim protocol around the inner
// stages: it acquires or reads the durable record, short-polls an
// in-flight claim held by another owner, and marks the record terminal
// once the inner call returns.
type IdempotencyStage struct {
	repo    domain.IdempotencyRepository
	policy  *policy.Store
	metrics *observability.MetricsCollector
}

// NewIdempotencyStage creates an IdempotencyStage.
func NewIdempotencyStage(repo domain.IdempotencyRepository, policyStore *policy.Store, metrics *observability.MetricsCollector) *IdempotencyStage {
	return &IdempotencyStage{repo: repo, policy: policyStore, metrics: metrics}
}

// Wrap applies the idempotency stage. No-op when spec.Idempotency is nil.
func (s *IdempotencyStage) Wrap(spec OperationSpec, next Handler) Handler {
	if spec.Idempotency == nil {
		return next
	}

	return func(ctx context.Context, args any) (any, error) {
		if policyBypassed(ctx, s.policy, spec.MethodKey) {
			return next(ctx, args)
		}

		idemSpec := spec.Idempotency

		key := strings.TrimSpace(IdempotencyKeyFromContext(ctx))
		if len(key) > maxIdempotencyKeyLength {
			key = key[:maxIdempotencyKeyLength]
		}
		if key == "" {
			if idemSpec.RequireKey {
				s.metrics.RecordIdempotencyOutcome("missing_key")
				return nil, domain.ErrMissingIdempotencyKey
			}
			return next(ctx, args)
		}

		requestHash := hashArgs(args)
		ownerID := CorrelationIDFromContext(ctx)

		ttlSeconds := idemSpec.effectiveTTLSeconds(s.ttlOverride(ctx, spec.MethodKey))
		ttl := time.Duration(ttlSeconds) * time.Second

		record, err := s.repo.AcquireOrGet(ctx, key, spec.MethodKey, requestHash, ttl, ownerID, time.Now())
		if err != nil {
			return nil, err
		}

		if idemSpec.ConflictOnDifferentRequest && record.RequestHash != requestHash {
			s.metrics.RecordIdempotencyOutcome("payload_conflict")
			return nil, domain.ErrIdempotencyPayloadConflict
		}

		record, err = s.resolvePending(ctx, idemSpec, spec.MethodKey, key, ownerID, record)
		if err != nil {
			return nil, err
		}

		switch record.Status {
		case domain.IdempotencyCompleted:
			s.metrics.RecordIdempotencyOutcome("replayed_completed")
			return s.decodeResponse(record.ResponseJSON)
		case domain.IdempotencyFailed:
			s.metrics.RecordIdempotencyOutcome("replayed_failed")
			return nil, domain.ErrIdempotencyPreviousFailed
		}

		s.metrics.RecordIdempotencyOutcome("claimed")
		result, callErr := next(ctx, args)

		if record.LockedBy != ownerID {
			// We proceeded despite not holding the claim (rejectInFlight=false
			// against another owner's in-flight record); the protocol reserves
			// the terminal transition to the actual owner.
			return result, callErr
		}

		if callErr != nil {
			if markErr := s.repo.MarkFailed(ctx, key, spec.MethodKey, ownerID, callErr.Error()); markErr != nil {
				return nil, markErr
			}
			return nil, callErr
		}

		responseJSON := marshalBestEffort(result)
		if markErr := s.repo.MarkCompleted(ctx, key, spec.MethodKey, ownerID, responseJSON); markErr != nil {
			return nil, markErr
		}
		return result, nil
	}
}

// resolvePending short-polls a record another owner holds PENDING, per
// §4.3 step 6. It honors ctx cancellation at every step, surfacing it as
// ctx.Err() rather than KeyInFlight.
func (s *IdempotencyStage) resolvePending(ctx context.Context, idemSpec *IdempotencySpec, methodKey domain.MethodKey, key, ownerID string, record *domain.IdempotencyRecord) (*domain.IdempotencyRecord, error) {
	if record.Status != domain.IdempotencyPending {
		return record, nil
	}
	if record.LockedBy == ownerID || !idemSpec.RejectInFlight {
		return record, nil
	}

	deadline := time.Now().Add(shortPollBudget)
	current := record
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(shortPollStep):
		}

		latest, err := s.repo.Get(ctx, key, methodKey)
		if err != nil {
			return nil, err
		}
		current = latest
		if current.Status != domain.IdempotencyPending {
			return current, nil
		}
	}

	s.metrics.RecordIdempotencyOutcome("in_flight_timeout")
	return nil, domain.ErrIdempotencyKeyInFlight
}

func (s *IdempotencyStage) decodeResponse(responseJSON []byte) (any, error) {
	if len(responseJSON) == 0 {
		return nil, nil
	}
	if !json.Valid(responseJSON) {
		return nil, domain.ErrStoredResponseUnreadable
	}
	return json.RawMessage(responseJSON), nil
}

func (s *IdempotencyStage) ttlOverride(ctx context.Context, methodKey domain.MethodKey) *int {
	if s.policy == nil {
		return nil
	}
	p, err := s.policy.Find(ctx, SubjectFromContext(ctx).Key(), methodKey)
	if err != nil || !p.Enabled {
		return nil
	}
	return p.IdempotencyTTLSeconds
}

func hashArgs(args any) string {
	sum := sha256.Sum256(marshalBestEffort(args))
	return hex.EncodeToString(sum[:])
}
