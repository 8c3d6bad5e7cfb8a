package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/riftlabs/interlock/internal/domain"
	"github.com/riftlabs/interlock/internal/observability"
	"github.com/riftlabs/interlock/internal/postgres"
)

const idempotencyTable = "idempotency_records"

func sq() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// idempotencyRow mirrors idempotency_records for scany.
type idempotencyRow struct {
	IdempotencyKey string    `db:"idempotency_key"`
	MethodKey      string    `db:"method_key"`
	RequestHash    string    `db:"request_hash"`
	Status         string    `db:"status"`
	ResponseJSON   []byte    `db:"response_json"`
	ErrorMessage   string    `db:"error_message"`
	ExpiresAt      time.Time `db:"expires_at"`
	LockedAt       time.Time `db:"locked_at"`
	LockedBy       string    `db:"locked_by"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r *idempotencyRow) toDomain() *domain.IdempotencyRecord {
	return &domain.IdempotencyRecord{
		IdempotencyKey: r.IdempotencyKey,
		MethodKey:      domain.MethodKey(r.MethodKey),
		RequestHash:    r.RequestHash,
		Status:         domain.IdempotencyStatus(r.Status),
		ResponseJSON:   r.ResponseJSON,
		ErrorMessage:   r.ErrorMessage,
		ExpiresAt:      r.ExpiresAt,
		LockedAt:       r.LockedAt,
		LockedBy:       r.LockedBy,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// IdempotencyRepository implements domain.IdempotencyRepository against
// Postgres, using a SELECT ... FOR UPDATE row lock to serialize the
// acquire/claim/replay decision for a given (idempotency_key, method_key)
// pair (§4.3.1).
type IdempotencyRepository struct {
	txManager *postgres.TxManager
	logger    *observability.Logger
}

// NewIdempotencyRepository creates an IdempotencyRepository.
func NewIdempotencyRepository(txManager *postgres.TxManager, logger *observability.Logger) *IdempotencyRepository {
	return &IdempotencyRepository{txManager: txManager, logger: logger}
}

// AcquireOrGet implements the §4.3.1 claim protocol inside a single
// transaction: lock the row if present, insert it if absent, reset it if
// expired, claim it if PENDING-and-unlocked, otherwise return it unchanged
// for the caller to interpret (in-flight, conflict, or replay).
func (r *IdempotencyRepository) AcquireOrGet(ctx context.Context, idempotencyKey string, methodKey domain.MethodKey, requestHash string, ttl time.Duration, ownerID string, now time.Time) (*domain.IdempotencyRecord, error) {
	var result *domain.IdempotencyRecord

	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		querier := r.txManager.GetQuerier(ctx)

		selectSQL, selectArgs, err := sq().
			Select("idempotency_key", "method_key", "request_hash", "status", "response_json",
				"error_message", "expires_at", "locked_at", "locked_by", "created_at", "updated_at").
			From(idempotencyTable).
			Where(squirrel.Eq{"idempotency_key": idempotencyKey, "method_key": string(methodKey)}).
			Suffix("FOR UPDATE").
			ToSql()
		if err != nil {
			return fmt.Errorf("build select: %w", err)
		}

		var row idempotencyRow
		err = pgxscan.Get(ctx, querier, &row, selectSQL, selectArgs...)
		switch {
		case err != nil && pgxscan.NotFound(err):
			inserted, insertErr := r.insertClaimed(ctx, querier, idempotencyKey, string(methodKey), requestHash, ttl, ownerID, now)
			if insertErr != nil {
				return insertErr
			}
			result = inserted
			return nil
		case err != nil:
			return fmt.Errorf("select for update: %w", err)
		}

		if row.ExpiresAt.Before(now) {
			reclaimed, reclaimErr := r.reclaimExpired(ctx, querier, idempotencyKey, string(methodKey), requestHash, ttl, ownerID, now)
			if reclaimErr != nil {
				return reclaimErr
			}
			result = reclaimed
			return nil
		}

		if domain.IdempotencyStatus(row.Status) == domain.IdempotencyPending && row.LockedBy == "" {
			claimed, claimErr := r.claimPending(ctx, querier, idempotencyKey, string(methodKey), ownerID, now)
			if claimErr != nil {
				return claimErr
			}
			result = claimed
			return nil
		}

		result = row.toDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *IdempotencyRepository) insertClaimed(ctx context.Context, querier postgres.Querier, idempotencyKey, methodKey, requestHash string, ttl time.Duration, ownerID string, now time.Time) (*domain.IdempotencyRecord, error) {
	insertSQL, args, err := sq().
		Insert(idempotencyTable).
		Columns("idempotency_key", "method_key", "request_hash", "status", "expires_at", "locked_at", "locked_by", "created_at", "updated_at").
		Values(idempotencyKey, methodKey, requestHash, string(domain.IdempotencyPending), now.Add(ttl), now, ownerID, now, now).
		Suffix("RETURNING idempotency_key, method_key, request_hash, status, response_json, error_message, expires_at, locked_at, locked_by, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}

	var row idempotencyRow
	if err := pgxscan.Get(ctx, querier, &row, insertSQL, args...); err != nil {
		return nil, fmt.Errorf("insert claimed: %w", err)
	}
	return row.toDomain(), nil
}

func (r *IdempotencyRepository) reclaimExpired(ctx context.Context, querier postgres.Querier, idempotencyKey, methodKey, requestHash string, ttl time.Duration, ownerID string, now time.Time) (*domain.IdempotencyRecord, error) {
	updateSQL, args, err := sq().
		Update(idempotencyTable).
		Set("request_hash", requestHash).
		Set("status", string(domain.IdempotencyPending)).
		Set("response_json", nil).
		Set("error_message", "").
		Set("expires_at", now.Add(ttl)).
		Set("locked_at", now).
		Set("locked_by", ownerID).
		Set("updated_at", now).
		Where(squirrel.Eq{"idempotency_key": idempotencyKey, "method_key": methodKey}).
		Suffix("RETURNING idempotency_key, method_key, request_hash, status, response_json, error_message, expires_at, locked_at, locked_by, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build reclaim: %w", err)
	}

	var row idempotencyRow
	if err := pgxscan.Get(ctx, querier, &row, updateSQL, args...); err != nil {
		return nil, fmt.Errorf("reclaim expired: %w", err)
	}
	return row.toDomain(), nil
}

func (r *IdempotencyRepository) claimPending(ctx context.Context, querier postgres.Querier, idempotencyKey, methodKey, ownerID string, now time.Time) (*domain.IdempotencyRecord, error) {
	updateSQL, args, err := sq().
		Update(idempotencyTable).
		Set("locked_at", now).
		Set("locked_by", ownerID).
		Set("updated_at", now).
		Where(squirrel.Eq{"idempotency_key": idempotencyKey, "method_key": methodKey}).
		Suffix("RETURNING idempotency_key, method_key, request_hash, status, response_json, error_message, expires_at, locked_at, locked_by, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build claim: %w", err)
	}

	var row idempotencyRow
	if err := pgxscan.Get(ctx, querier, &row, updateSQL, args...); err != nil {
		return nil, fmt.Errorf("claim pending: %w", err)
	}
	return row.toDomain(), nil
}

// Get re-reads the current record without taking a lock, used by the
// idempotency stage's short-poll loop while waiting on an in-flight claim.
func (r *IdempotencyRepository) Get(ctx context.Context, idempotencyKey string, methodKey domain.MethodKey) (*domain.IdempotencyRecord, error) {
	querier := r.txManager.GetQuerier(ctx)

	selectSQL, args, err := sq().
		Select("idempotency_key", "method_key", "request_hash", "status", "response_json",
			"error_message", "expires_at", "locked_at", "locked_by", "created_at", "updated_at").
		From(idempotencyTable).
		Where(squirrel.Eq{"idempotency_key": idempotencyKey, "method_key": string(methodKey)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var row idempotencyRow
	if err := pgxscan.Get(ctx, querier, &row, selectSQL, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, domain.ErrIdempotencyRecordNotFound
		}
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	return row.toDomain(), nil
}

// MarkCompleted transitions a PENDING record owned by ownerID to COMPLETED.
func (r *IdempotencyRepository) MarkCompleted(ctx context.Context, idempotencyKey string, methodKey domain.MethodKey, ownerID string, responseJSON []byte) error {
	return r.markTerminal(ctx, idempotencyKey, methodKey, ownerID, domain.IdempotencyCompleted, responseJSON, "")
}

// MarkFailed transitions a PENDING record owned by ownerID to FAILED.
func (r *IdempotencyRepository) MarkFailed(ctx context.Context, idempotencyKey string, methodKey domain.MethodKey, ownerID string, errorMessage string) error {
	return r.markTerminal(ctx, idempotencyKey, methodKey, ownerID, domain.IdempotencyFailed, nil, errorMessage)
}

func (r *IdempotencyRepository) markTerminal(ctx context.Context, idempotencyKey string, methodKey domain.MethodKey, ownerID string, status domain.IdempotencyStatus, responseJSON []byte, errorMessage string) error {
	querier := r.txManager.GetQuerier(ctx)

	updateSQL, args, err := sq().
		Update(idempotencyTable).
		Set("status", string(status)).
		Set("response_json", responseJSON).
		Set("error_message", errorMessage).
		Set("locked_by", "").
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"idempotency_key": idempotencyKey, "method_key": string(methodKey), "locked_by": ownerID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark terminal: %w", err)
	}

	tag, err := querier.Exec(ctx, updateSQL, args...)
	if err != nil {
		return fmt.Errorf("mark terminal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark terminal: no row owned by %q for key %q", ownerID, idempotencyKey)
	}
	return nil
}

// DeleteExpired removes rows whose TTL has lapsed as of now.
func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	querier := r.txManager.GetQuerier(ctx)

	deleteSQL, args, err := sq().
		Delete(idempotencyTable).
		Where(squirrel.Lt{"expires_at": now}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete expired: %w", err)
	}

	tag, err := querier.Exec(ctx, deleteSQL, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}
	return tag.RowsAffected(), nil
}
