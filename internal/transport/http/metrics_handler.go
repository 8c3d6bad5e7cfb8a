package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler returns a gin handler serving the Prometheus registry
// promauto registered the chain's and transport's metrics against.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// HealthResponse is the liveness/readiness payload.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthCheck reports liveness. The demo server has no external
// dependencies it must probe to answer this honestly — database/Redis
// reachability is left to the orchestrator's own readiness probes.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy"})
}
