package errors

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/riftlabs/interlock/internal/domain"
)

// ErrorResponse is the JSON error envelope sent to clients.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable code, a human message, and the
// trace id for correlating a client report with server-side logs.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id"`
}

// ToHTTPError converts any error surfaced by the chain into an HTTP status
// and an ErrorResponse body. Internal error detail is never echoed back —
// unrecognized errors collapse to a generic INTERNAL message.
func ToHTTPError(ctx context.Context, err error) (int, ErrorResponse) {
	if appErr, ok := err.(*AppError); ok {
		return appErr.HTTPStatus, ErrorResponse{
			Error: ErrorDetail{
				Code:    appErr.Code,
				Message: appErr.Message,
				TraceID: appErr.TraceID,
			},
		}
	}

	traceID := extractTraceID(ctx)

	switch {
	case stderrors.Is(err, domain.ErrMissingIdempotencyKey):
		return http.StatusBadRequest, resp(KindMissingIdempotencyKey, "idempotency key is required", traceID)

	case stderrors.Is(err, domain.ErrIdempotencyPayloadConflict):
		return http.StatusConflict, resp(KindKeyPayloadConflict, "idempotency key reused with a different request payload", traceID)

	case stderrors.Is(err, domain.ErrIdempotencyPreviousFailed):
		return http.StatusConflict, resp(KindKeyPreviousFailed, "the previous attempt for this key failed; use a new key", traceID)

	case stderrors.Is(err, domain.ErrIdempotencyKeyInFlight):
		return http.StatusConflict, resp(KindKeyInFlight, "another request is currently processing this key", traceID)

	case stderrors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, resp(KindRateLimited, "rate limit exceeded", traceID)

	case stderrors.Is(err, domain.ErrStoredResponseUnreadable):
		return http.StatusInternalServerError, resp(KindStoredResponseUnreadable, "stored idempotent response could not be read", traceID)

	case stderrors.Is(err, ErrValidation):
		return http.StatusBadRequest, resp(KindValidation, err.Error(), traceID)

	default:
		return http.StatusInternalServerError, resp(KindInternal, "internal server error", traceID)
	}
}

func resp(kind Kind, message, traceID string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetail{
			Code:    string(kind),
			Message: message,
			TraceID: traceID,
		},
	}
}
