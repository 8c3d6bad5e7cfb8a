// Package http supplies the minimal gin-based demo server SPEC_FULL §2.1
// calls for: just enough routing, header plumbing, and error rendering to
// exercise the chain end-to-end for the §8 E1–E6 scenarios. This is glue,
// not core — the chain, subject resolver, and policy store it wires in do
// all the real work.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/riftlabs/interlock/internal/chain"
	"github.com/riftlabs/interlock/internal/observability"
	"github.com/riftlabs/interlock/internal/subject"
)

// SetupRouter wires the global middleware stack and the demo routes onto a
// fresh gin engine.
func SetupRouter(c *chain.Chain, resolver *subject.Resolver, logger *observability.Logger, metrics *observability.MetricsCollector, mode string) *gin.Engine {
	if mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(
		RecoveryMiddleware(logger),
		TracingMiddleware("interlock"),
		CorrelationMiddleware(),
		IdempotencyKeyMiddleware(),
		SubjectMiddleware(resolver),
		LoggingMiddleware(logger),
		MetricsMiddleware(metrics),
		CORSMiddleware(),
	)

	router.GET("/health", HealthCheck)
	router.GET("/metrics", MetricsHandler())

	handler := NewHandler(c, logger)

	demo := router.Group("/demo")
	{
		demo.GET("/cache", handler.GetCacheDemo)
		demo.POST("/idempotent", handler.PostIdempotentDemo)
		demo.GET("/ratelimited", handler.GetRateLimitedDemo)
		demo.GET("/retry", handler.GetRetryDemo)
	}

	return router
}
