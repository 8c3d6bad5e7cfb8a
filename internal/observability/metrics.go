package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector holds the Prometheus metrics emitted by the interceptor
// chain and the demo HTTP transport.
type MetricsCollector struct {
	// HTTP transport
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Chain stage outcomes (§4, §7)
	ChainStageDuration   *prometheus.HistogramVec
	AuditLogsTotal       *prometheus.CounterVec
	AuditLogFailures     *prometheus.CounterVec
	IdempotencyHitsTotal *prometheus.CounterVec
	PolicyCacheHits      *prometheus.CounterVec
	ResponseCacheHits    *prometheus.CounterVec
	RateLimitRejections  *prometheus.CounterVec
	RetryAttemptsTotal   *prometheus.CounterVec
	RetryExhaustedTotal  *prometheus.CounterVec

	// Database
	DBQueriesTotal      *prometheus.CounterVec
	DBQueryDuration     *prometheus.HistogramVec
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Generic error accounting
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal *prometheus.CounterVec
}

// NewMetricsCollector creates and registers the Prometheus metrics under the
// given namespace/subsystem.
func NewMetricsCollector(namespace, subsystem string) *MetricsCollector {
	return &MetricsCollector{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace, Subsystem: subsystem,
				Name: "http_requests_total", Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace, Subsystem: subsystem,
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),

		ChainStageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace, Subsystem: subsystem,
				Name:    "chain_stage_duration_seconds",
				Help:    "Duration spent inside each interceptor stage",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5},
			},
			[]string{"stage", "method_key"},
		),

		AuditLogsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace, Subsystem: subsystem,
				Name: "audit_logs_total", Help: "Total number of audit rows written",
			},
			[]string{"status"}, // OK, ERROR
		),

		AuditLogFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace, Subsystem: subsystem,
				Name: "audit_log_failures_total", Help: "Total number of audit row write failures",
			},
			[]string{"reason"},
		),

		IdempotencyHitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace, Subsystem: subsystem,
				Name: "idempotency_outcomes_total", Help: "Idempotency stage outcomes",
			},
			[]string{"outcome"}, // missing_key, payload_conflict, replayed_completed, replayed_failed, claimed, in_flight_timeout
		),

		PolicyCacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace, Subsystem: subsystem,
				Name: "policy_cache_total", Help: "Policy lookup cache hits and misses",
			},
			[]string{"result"}, // hit, miss, negative
		),

		ResponseCacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace, Subsystem: subsystem,
				Name: "response_cache_total", Help: "Named response cache hits and misses",
			},
			[]string{"cache_name", "result"}, // result: hit, miss
		),

		RateLimitRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace, Subsystem: subsystem,
				Name: "rate_limit_rejections_total", Help: "Requests rejected by the rate limit stage",
			},
			[]string{"method_key", "subject_type"},
		),

		RetryAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace, Subsystem: subsystem,
				Name: "retry_attempts_total", Help: "Retry attempts made by the retry stage",
			},
			[]string{"method_key"},
		),

		RetryExhaustedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace, Subsystem: subsystem,
				Name: "retry_exhausted_total", Help: "Retry budgets exhausted without success",
			},
			[]string{"method_key"},
		),

		DBQueriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace, Subsystem: subsystem,
				Name: "db_queries_total", Help: "Total number of database queries",
			},
			[]string{"operation", "table", "status"},
		),

		DBQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace, Subsystem: subsystem,
				Name:    "db_query_duration_seconds",
				Help:    "Database query duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation", "table"},
		),

		DBConnectionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace, Subsystem: subsystem,
				Name: "db_connections_active", Help: "Number of active database connections",
			},
		),

		DBConnectionsIdle: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace, Subsystem: subsystem,
				Name: "db_connections_idle", Help: "Number of idle database connections",
			},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace, Subsystem: subsystem,
				Name: "errors_total", Help: "Total number of errors",
			},
			[]string{"kind", "component"},
		),

		PanicsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace, Subsystem: subsystem,
				Name: "panics_total", Help: "Total number of panics recovered",
			},
			[]string{"component"},
		),
	}
}

// RecordHTTPRequest records HTTP transport metrics.
func (mc *MetricsCollector) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	mc.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	mc.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordChainStage records time spent inside a single stage of the chain.
func (mc *MetricsCollector) RecordChainStage(stage, methodKey string, duration time.Duration) {
	mc.ChainStageDuration.WithLabelValues(stage, methodKey).Observe(duration.Seconds())
}

// RecordAuditLog records an audit row write outcome.
func (mc *MetricsCollector) RecordAuditLog(status string, success bool) {
	if success {
		mc.AuditLogsTotal.WithLabelValues(status).Inc()
	} else {
		mc.AuditLogFailures.WithLabelValues("write_failed").Inc()
	}
}

// RecordIdempotencyOutcome records one of missing_key/payload_conflict/replayed_completed/replayed_failed/claimed/in_flight_timeout.
func (mc *MetricsCollector) RecordIdempotencyOutcome(outcome string) {
	mc.IdempotencyHitsTotal.WithLabelValues(outcome).Inc()
}

// RecordPolicyCacheResult records hit/miss/negative for a policy lookup.
func (mc *MetricsCollector) RecordPolicyCacheResult(result string) {
	mc.PolicyCacheHits.WithLabelValues(result).Inc()
}

// RecordResponseCacheResult records hit/miss for a named response cache.
func (mc *MetricsCollector) RecordResponseCacheResult(cacheName, result string) {
	mc.ResponseCacheHits.WithLabelValues(cacheName, result).Inc()
}

// RecordRateLimitRejection records a request rejected by the rate limit stage.
func (mc *MetricsCollector) RecordRateLimitRejection(methodKey, subjectType string) {
	mc.RateLimitRejections.WithLabelValues(methodKey, subjectType).Inc()
}

// RecordRetryAttempt records a single retry attempt.
func (mc *MetricsCollector) RecordRetryAttempt(methodKey string) {
	mc.RetryAttemptsTotal.WithLabelValues(methodKey).Inc()
}

// RecordRetryExhausted records a retry budget exhausted without success.
func (mc *MetricsCollector) RecordRetryExhausted(methodKey string) {
	mc.RetryExhaustedTotal.WithLabelValues(methodKey).Inc()
}

// RecordDBQuery records database query metrics.
func (mc *MetricsCollector) RecordDBQuery(operation, table, status string, duration time.Duration) {
	mc.DBQueriesTotal.WithLabelValues(operation, table, status).Inc()
	mc.DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// UpdateDBConnections updates database connection pool gauges.
func (mc *MetricsCollector) UpdateDBConnections(active, idle int) {
	mc.DBConnectionsActive.Set(float64(active))
	mc.DBConnectionsIdle.Set(float64(idle))
}

// RecordError records a chain or transport error.
func (mc *MetricsCollector) RecordError(kind, component string) {
	mc.ErrorsTotal.WithLabelValues(kind, component).Inc()
}

// RecordPanic records a recovered panic.
func (mc *MetricsCollector) RecordPanic(component string) {
	mc.PanicsTotal.WithLabelValues(component).Inc()
}
