package http

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/riftlabs/interlock/internal/errors"
)

// writeError renders any error surfaced by the chain as the standard JSON
// error envelope, adding the Retry-After header the rate-limit stage
// requires (§6) when the error carries one.
func writeError(c *gin.Context, err error) {
	status, body := apperrors.ToHTTPError(c.Request.Context(), err)

	if appErr, ok := err.(*apperrors.AppError); ok && appErr.RetryAfterSeconds > 0 {
		c.Header("Retry-After", strconv.Itoa(appErr.RetryAfterSeconds))
	}

	c.JSON(status, body)
}

// writeAppError is writeError specialized for a caller that already holds a
// concrete *apperrors.AppError, used by middleware that raises errors
// outside the chain (e.g. panic recovery).
func writeAppError(c *gin.Context, appErr *apperrors.AppError) {
	writeError(c, appErr)
}
