package errors

import (
	"context"
	"net/http"
	"testing"

	"github.com/riftlabs/interlock/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestToHTTPError(t *testing.T) {
	tests := []struct {
		name               string
		err                error
		expectedStatusCode int
		expectedCode       string
	}{
		{"missing idempotency key", domain.ErrMissingIdempotencyKey, http.StatusBadRequest, string(KindMissingIdempotencyKey)},
		{"payload conflict", domain.ErrIdempotencyPayloadConflict, http.StatusConflict, string(KindKeyPayloadConflict)},
		{"previous failed", domain.ErrIdempotencyPreviousFailed, http.StatusConflict, string(KindKeyPreviousFailed)},
		{"key in flight", domain.ErrIdempotencyKeyInFlight, http.StatusConflict, string(KindKeyInFlight)},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests, string(KindRateLimited)},
		{"stored response unreadable", domain.ErrStoredResponseUnreadable, http.StatusInternalServerError, string(KindStoredResponseUnreadable)},
		{"validation", ErrValidation, http.StatusBadRequest, string(KindValidation)},
		{"unknown error", assert.AnError, http.StatusInternalServerError, string(KindInternal)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			statusCode, response := ToHTTPError(ctx, tt.err)

			assert.Equal(t, tt.expectedStatusCode, statusCode)
			assert.Equal(t, tt.expectedCode, response.Error.Code)
		})
	}
}

func TestToHTTPError_WithAppError(t *testing.T) {
	ctx := context.Background()
	appErr := New(ctx, KindRateLimited, "rate limit exceeded").WithRetryAfter(2)

	statusCode, response := ToHTTPError(ctx, appErr)

	assert.Equal(t, http.StatusTooManyRequests, statusCode)
	assert.Equal(t, string(KindRateLimited), response.Error.Code)
	assert.Equal(t, "rate limit exceeded", response.Error.Message)
}
