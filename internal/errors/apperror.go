package errors

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/trace"
)

// Kind is the closed set of error kinds the interceptor core can surface,
// per the error-handling design. Each kind maps to exactly one HTTP status;
// the outer error mapper performs that translation.
type Kind string

const (
	KindMissingIdempotencyKey  Kind = "MISSING_IDEMPOTENCY_KEY"
	KindKeyPayloadConflict     Kind = "KEY_PAYLOAD_CONFLICT"
	KindKeyPreviousFailed      Kind = "KEY_PREVIOUS_FAILED"
	KindKeyInFlight            Kind = "KEY_IN_FLIGHT"
	KindRateLimited            Kind = "RATE_LIMITED"
	KindStoredResponseUnreadable Kind = "STORED_RESPONSE_UNREADABLE"
	KindBadRequest             Kind = "BAD_REQUEST"
	KindValidation             Kind = "VALIDATION"
	KindInternal               Kind = "INTERNAL"
)

var kindHTTPStatus = map[Kind]int{
	KindMissingIdempotencyKey:   http.StatusBadRequest,
	KindKeyPayloadConflict:      http.StatusConflict,
	KindKeyPreviousFailed:       http.StatusConflict,
	KindKeyInFlight:             http.StatusConflict,
	KindRateLimited:             http.StatusTooManyRequests,
	KindStoredResponseUnreadable: http.StatusInternalServerError,
	KindBadRequest:              http.StatusBadRequest,
	KindValidation:              http.StatusBadRequest,
	KindInternal:                http.StatusInternalServerError,
}

// statusForKind resolves a Kind's HTTP status, defaulting to 500 for any
// kind not in the table (there should be none, but New/Wrap must never
// panic on an unrecognized value).
func statusForKind(k Kind) int {
	if status, ok := kindHTTPStatus[k]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// AppError is the structured error the chain raises and the transport layer
// renders. RetryAfterSeconds is only meaningful for KindRateLimited.
type AppError struct {
	Kind              Kind   `json:"-"`
	Code              string `json:"code"`
	Message           string `json:"message"`
	HTTPStatus        int    `json:"-"`
	TraceID           string `json:"trace_id,omitempty"`
	RetryAfterSeconds int    `json:"-"`
	cause             error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause, if any, so errors.Is/As keep working
// through an AppError the way they do through a domain sentinel.
func (e *AppError) Unwrap() error { return e.cause }

// New creates an AppError of the given kind, extracting the trace id from
// ctx if a recording span is present.
func New(ctx context.Context, kind Kind, message string) *AppError {
	return &AppError{
		Kind:       kind,
		Code:       string(kind),
		Message:    message,
		HTTPStatus: statusForKind(kind),
		TraceID:    extractTraceID(ctx),
	}
}

// Wrap attaches a kind and HTTP status to an existing error, keeping the
// underlying error's message and preserving it as the Unwrap cause.
func Wrap(ctx context.Context, err error, kind Kind) *AppError {
	return &AppError{
		Kind:       kind,
		Code:       string(kind),
		Message:    err.Error(),
		HTTPStatus: statusForKind(kind),
		TraceID:    extractTraceID(ctx),
		cause:      err,
	}
}

// WrapWithMessage is like Wrap but overrides the client-facing message,
// useful when err.Error() would leak internal detail.
func WrapWithMessage(ctx context.Context, err error, kind Kind, message string) *AppError {
	ae := Wrap(ctx, err, kind)
	ae.Message = message
	return ae
}

// WithRetryAfter sets RetryAfterSeconds and returns the same *AppError for
// chaining at the rate-limit stage's raise site.
func (e *AppError) WithRetryAfter(seconds int) *AppError {
	e.RetryAfterSeconds = seconds
	return e
}

// IsAppError reports whether err is already an *AppError.
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

func extractTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return ""
	}
	traceID := span.SpanContext().TraceID()
	if !traceID.IsValid() {
		return ""
	}
	return traceID.String()
}
