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

const auditTable = "audit_rows"

type auditRowRecord struct {
	ID            uint64    `db:"id"`
	CorrelationID string    `db:"correlation_id"`
	TraceID       string    `db:"trace_id"`
	TargetType    string    `db:"target_type"`
	MethodKey     string    `db:"method_key"`
	ArgsJSON      []byte    `db:"args_json"`
	ResultJSON    []byte    `db:"result_json"`
	Status        string    `db:"status"`
	ErrorMessage  string    `db:"error_message"`
	ErrorStack    string    `db:"error_stack"`
	DurationMs    int64     `db:"duration_ms"`
	CreatedAt     time.Time `db:"created_at"`
}

// AuditRepository implements domain.AuditRepository against Postgres.
// Every write runs in its own short transaction, independent of whatever
// transaction (if any) the inner handler is using, so an audit failure
// never rolls back business work (§4.2).
type AuditRepository struct {
	pool   postgres.Querier
	logger *observability.Logger
}

// NewAuditRepository creates an AuditRepository writing directly against
// the pool, bypassing any ambient transaction on ctx.
func NewAuditRepository(pool postgres.Querier, logger *observability.Logger) *AuditRepository {
	return &AuditRepository{pool: pool, logger: logger}
}

// Create appends a single audit row.
func (r *AuditRepository) Create(ctx context.Context, row *domain.AuditRow) error {
	insertSQL, args, err := sq().
		Insert(auditTable).
		Columns("correlation_id", "trace_id", "target_type", "method_key", "args_json", "result_json",
			"status", "error_message", "error_stack", "duration_ms", "created_at").
		Values(row.CorrelationID, row.TraceID, row.TargetType, string(row.MethodKey), row.ArgsJSON, row.ResultJSON,
			string(row.Status), row.ErrorMessage, row.ErrorStack, row.DurationMs, row.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}

	var id uint64
	if scanErr := pgxscan.Get(ctx, r.pool, &struct {
		ID *uint64 `db:"id"`
	}{ID: &id}, insertSQL, args...); scanErr != nil {
		r.logger.WithError(scanErr).WithField("method_key", row.MethodKey.String()).Error("failed to write audit row")
		return fmt.Errorf("create audit row: %w", scanErr)
	}
	row.ID = id
	return nil
}

// DeleteOlderThan removes rows whose CreatedAt precedes cutoff.
func (r *AuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	deleteSQL, args, err := sq().
		Delete(auditTable).
		Where(squirrel.Lt{"created_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build audit delete: %w", err)
	}

	tag, err := r.pool.Exec(ctx, deleteSQL, args...)
	if err != nil {
		return 0, fmt.Errorf("delete old audit rows: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *auditRowRecord) toDomain() *domain.AuditRow {
	return &domain.AuditRow{
		ID:            r.ID,
		CorrelationID: r.CorrelationID,
		TraceID:       r.TraceID,
		TargetType:    r.TargetType,
		MethodKey:     domain.MethodKey(r.MethodKey),
		ArgsJSON:      r.ArgsJSON,
		ResultJSON:    r.ResultJSON,
		Status:        domain.AuditStatus(r.Status),
		ErrorMessage:  r.ErrorMessage,
		ErrorStack:    r.ErrorStack,
		DurationMs:    r.DurationMs,
		CreatedAt:     r.CreatedAt,
	}
}
