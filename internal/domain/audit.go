package domain

import (
	"context"
	"time"
)

// AuditStatus is the terminal outcome recorded for an audited invocation.
type AuditStatus string

const (
	AuditStatusOK    AuditStatus = "OK"
	AuditStatusError AuditStatus = "ERROR"
)

// AuditRow is an append-only record of one invocation reaching the audit
// stage. ArgsJSON and ResultJSON are optional and capped (§4.2); a payload
// exceeding the cap is replaced by a truncation envelope before it reaches
// this struct.
type AuditRow struct {
	ID uint64

	CorrelationID string
	TraceID       string // optional, empty when no active span

	TargetType string // type name the operation was declared on
	MethodKey  MethodKey

	ArgsJSON   []byte // optional, nil when captureArgs is false
	ResultJSON []byte // optional, nil when captureResult is false or status is ERROR

	Status       AuditStatus
	ErrorMessage string
	ErrorStack   string // optional, nil/empty unless captureStacktrace is set

	DurationMs int64
	CreatedAt  time.Time
}

// AuditRepository defines persistence for audit rows. The core only ever
// appends and periodically sweeps by retention predicate; it never reads
// its own rows back.
type AuditRepository interface {
	// Create appends a single row. Implementations MUST run this in its own
	// isolated transaction — a failure here MUST NOT propagate to the
	// caller's business path.
	Create(ctx context.Context, row *AuditRow) error

	// DeleteOlderThan removes rows whose CreatedAt precedes cutoff, per an
	// externally configured retention policy. Not exercised by the core
	// chain itself; provided for operational cleanup jobs.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
