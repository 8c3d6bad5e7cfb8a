package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/riftlabs/interlock/internal/chain"
	apperrors "github.com/riftlabs/interlock/internal/errors"
	"github.com/riftlabs/interlock/internal/observability"
	"github.com/riftlabs/interlock/internal/subject"
)

// CorrelationMiddleware reads X-Correlation-Id (generating a v4 id when
// absent, §4.10), stashes it on the request context, and echoes it on
// every response (§6).
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader("X-Correlation-Id"))
		if id == "" {
			id = uuid.NewString()
		}
		c.Writer.Header().Set("X-Correlation-Id", id)
		ctx := chain.WithCorrelationID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// IdempotencyKeyMiddleware lifts X-Idempotency-Key (alias Idempotency-Key)
// off the request, trims it, and stashes it on the context for the
// idempotency stage to read (§6).
func IdempotencyKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader("X-Idempotency-Key"))
		if key == "" {
			key = strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		}
		if key != "" {
			ctx := chain.WithIdempotencyKey(c.Request.Context(), key)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// SubjectMiddleware resolves the caller identity (§4.8) from the inbound
// headers and the transport peer address, and attaches it to the request
// context for the rate-limit and cache stages to read.
func SubjectMiddleware(resolver *subject.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := subject.Request{
			APIKey:          c.GetHeader("X-Api-Key"),
			AuthenticatedAs: firstNonEmpty(c.GetHeader("X-User-Id"), c.GetHeader("X-User")),
			ForwardedFor:    c.GetHeader("X-Forwarded-For"),
			RealIP:          c.GetHeader("X-Real-IP"),
			PeerAddr:        c.Request.RemoteAddr,
		}
		s := resolver.Resolve(c.Request.Context(), req)
		ctx := chain.WithSubject(c.Request.Context(), s)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// LoggingMiddleware logs HTTP requests and responses.
func LoggingMiddleware(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		logger.WithFields(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"ip_address": c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		}).Debug("http request received")

		c.Next()

		logger.WithFields(map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status_code": c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("http request completed")
	}
}

// MetricsMiddleware records the HTTP transport metrics (§4 DOMAIN STACK
// metrics adapter).
func MetricsMiddleware(metrics *observability.MetricsCollector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.RecordHTTPRequest(c.Request.Method, c.FullPath(), http.StatusText(c.Writer.Status()), time.Since(start))
	}
}

// CORSMiddleware handles Cross-Origin Resource Sharing for the demo server.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Api-Key, X-Correlation-Id, X-Idempotency-Key, Idempotency-Key, X-User-Id, X-Forwarded-For")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RecoveryMiddleware recovers from panics and renders them as an INTERNAL
// AppError instead of tearing down the connection.
func RecoveryMiddleware(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(map[string]interface{}{
					"error":  r,
					"method": c.Request.Method,
					"path":   c.Request.URL.Path,
				}).Error("panic recovered")

				writeAppError(c, apperrors.New(c.Request.Context(), apperrors.KindInternal, "an unexpected error occurred"))
				c.Abort()
			}
		}()
		c.Next()
	}
}

// TracingMiddleware returns the OpenTelemetry tracing middleware for gin,
// giving AppError/audit-row trace-id extraction a span to read from (§4
// AMBIENT STACK, tracing).
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}
