package chain

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"time"

	"github.com/riftlabs/interlock/internal/domain"
	"github.com/riftlabs/interlock/internal/events"
	"github.com/riftlabs/interlock/internal/observability"
)

// AuditStage is the outermost stage: it records one AuditRow per
// invocation, regardless of the inner stages' outcome, and never turns a
// persistence failure into a business failure (§4.2, §7 recovery policy).
type AuditStage struct {
	repo            domain.AuditRepository
	logger          *observability.Logger
	metrics         *observability.MetricsCollector
	maxPayloadChars int
	publisher       events.AuditStreamPublisher
}

// NewAuditStage creates an AuditStage. maxPayloadChars truncates
// ArgsJSON/ResultJSON/ErrorStack before they are persisted.
func NewAuditStage(repo domain.AuditRepository, logger *observability.Logger, metrics *observability.MetricsCollector, maxPayloadChars int) *AuditStage {
	if maxPayloadChars <= 0 {
		maxPayloadChars = 20000
	}
	return &AuditStage{repo: repo, logger: logger, metrics: metrics, maxPayloadChars: maxPayloadChars}
}

// WithPublisher attaches a best-effort fan-out publisher (§4.11). Every
// successful AuditSink write is mirrored to the publisher after the write
// commits; a nil publisher (the default) disables fan-out entirely.
func (s *AuditStage) WithPublisher(publisher events.AuditStreamPublisher) *AuditStage {
	s.publisher = publisher
	return s
}

// Wrap records the call after next runs, whether it succeeds or fails. A
// nil spec.Audit, or one with Enabled false, makes this stage a
// transparent pass-through (§4.1, §4.2) — the inner stages still run.
func (s *AuditStage) Wrap(spec OperationSpec, next Handler) Handler {
	if spec.Audit == nil || !spec.Audit.Enabled {
		return next
	}

	return func(ctx context.Context, args any) (any, error) {
		start := time.Now()
		result, err := next(ctx, args)
		duration := time.Since(start)

		s.record(ctx, spec, spec.Audit, args, result, err, duration)

		return result, err
	}
}

// truncationEnvelope replaces a captured payload that exceeds the
// configured cap, per §4.2. Storing this in place of the raw payload
// keeps ArgsJSON/ResultJSON valid JSON regardless of where the cap falls
// inside the original encoding.
type truncationEnvelope struct {
	Truncated      bool   `json:"_truncated"`
	OriginalLength int    `json:"_originalLength"`
	Preview        string `json:"_preview"`
}

func (s *AuditStage) record(ctx context.Context, spec OperationSpec, auditSpec *AuditSpec, args, result any, callErr error, duration time.Duration) {
	maxPayloadChars := auditSpec.effectiveMaxPayloadChars(s.maxPayloadChars)

	row := &domain.AuditRow{
		CorrelationID: CorrelationIDFromContext(ctx),
		TraceID:       observability.ExtractTraceID(ctx),
		TargetType:    spec.TargetType,
		MethodKey:     spec.MethodKey,
		Status:        domain.AuditStatusOK,
		DurationMs:    duration.Milliseconds(),
		CreatedAt:     time.Now(),
	}

	if auditSpec.CaptureArgs {
		row.ArgsJSON = truncateJSON(marshalBestEffort(args), maxPayloadChars)
	}

	if callErr != nil {
		row.Status = domain.AuditStatusError
		row.ErrorMessage = callErr.Error()
		if auditSpec.CaptureStacktrace {
			row.ErrorStack = truncatePlain(string(debug.Stack()), maxPayloadChars)
		}
	} else if auditSpec.CaptureResult {
		row.ResultJSON = truncateJSON(marshalBestEffort(result), maxPayloadChars)
	}

	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.WithError(err).WithField("method_key", spec.MethodKey.String()).Error("failed to persist audit row")
		s.metrics.RecordAuditLog(string(row.Status), false)
		return
	}
	s.metrics.RecordAuditLog(string(row.Status), true)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, row); err != nil {
			s.logger.WithError(err).WithField("method_key", spec.MethodKey.String()).Warn("failed to publish audit row to stream")
		}
	}
}

// truncateJSON returns b unchanged when it fits within maxPayloadChars;
// otherwise it returns a truncationEnvelope encoding a preview of b, so
// the stored value is always valid JSON.
func truncateJSON(b []byte, maxPayloadChars int) []byte {
	if len(b) <= maxPayloadChars {
		return b
	}
	previewLen := maxPayloadChars
	if previewLen > len(b) {
		previewLen = len(b)
	}
	envelope := truncationEnvelope{
		Truncated:      true,
		OriginalLength: len(b),
		Preview:        string(b[:previewLen]),
	}
	out, err := json.Marshal(envelope)
	if err != nil {
		return nil
	}
	return out
}

// truncatePlain bounds a non-JSON string field (e.g. a stack trace) to
// maxPayloadChars without needing to preserve JSON validity.
func truncatePlain(v string, maxPayloadChars int) string {
	if len(v) <= maxPayloadChars {
		return v
	}
	return v[:maxPayloadChars]
}

func marshalBestEffort(v any) []byte {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
