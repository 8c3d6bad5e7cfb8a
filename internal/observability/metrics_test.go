package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

var testMetrics *MetricsCollector

func init() {
	testMetrics = NewMetricsCollector("test", "chain")
}

func TestNewMetricsCollector(t *testing.T) {
	assert.NotNil(t, testMetrics.HTTPRequestsTotal)
	assert.NotNil(t, testMetrics.ChainStageDuration)
	assert.NotNil(t, testMetrics.AuditLogsTotal)
	assert.NotNil(t, testMetrics.IdempotencyHitsTotal)
	assert.NotNil(t, testMetrics.PolicyCacheHits)
	assert.NotNil(t, testMetrics.ResponseCacheHits)
	assert.NotNil(t, testMetrics.RateLimitRejections)
	assert.NotNil(t, testMetrics.RetryAttemptsTotal)
	assert.NotNil(t, testMetrics.DBQueriesTotal)
	assert.NotNil(t, testMetrics.ErrorsTotal)
}

func TestRecordHTTPRequest(t *testing.T) {
	initial := testutil.ToFloat64(testMetrics.HTTPRequestsTotal.WithLabelValues("POST", "/orders", "200"))
	testMetrics.RecordHTTPRequest("POST", "/orders", "200", 10*time.Millisecond)
	count := testutil.ToFloat64(testMetrics.HTTPRequestsTotal.WithLabelValues("POST", "/orders", "200"))
	assert.Greater(t, count, initial)
}

func TestRecordChainStage(t *testing.T) {
	testMetrics.RecordChainStage("idempotency", "OrderService.Create", 2*time.Millisecond)
}

func TestRecordAuditLog(t *testing.T) {
	initial := testutil.ToFloat64(testMetrics.AuditLogsTotal.WithLabelValues("OK"))
	testMetrics.RecordAuditLog("OK", true)
	count := testutil.ToFloat64(testMetrics.AuditLogsTotal.WithLabelValues("OK"))
	assert.Greater(t, count, initial)

	failInitial := testutil.ToFloat64(testMetrics.AuditLogFailures.WithLabelValues("write_failed"))
	testMetrics.RecordAuditLog("OK", false)
	failCount := testutil.ToFloat64(testMetrics.AuditLogFailures.WithLabelValues("write_failed"))
	assert.Greater(t, failCount, failInitial)
}

func TestRecordIdempotencyOutcome(t *testing.T) {
	initial := testutil.ToFloat64(testMetrics.IdempotencyHitsTotal.WithLabelValues("replayed"))
	testMetrics.RecordIdempotencyOutcome("replayed")
	count := testutil.ToFloat64(testMetrics.IdempotencyHitsTotal.WithLabelValues("replayed"))
	assert.Greater(t, count, initial)
}

func TestRecordPolicyCacheResult(t *testing.T) {
	initial := testutil.ToFloat64(testMetrics.PolicyCacheHits.WithLabelValues("hit"))
	testMetrics.RecordPolicyCacheResult("hit")
	count := testutil.ToFloat64(testMetrics.PolicyCacheHits.WithLabelValues("hit"))
	assert.Greater(t, count, initial)
}

func TestRecordResponseCacheResult(t *testing.T) {
	initial := testutil.ToFloat64(testMetrics.ResponseCacheHits.WithLabelValues("quotes", "miss"))
	testMetrics.RecordResponseCacheResult("quotes", "miss")
	count := testutil.ToFloat64(testMetrics.ResponseCacheHits.WithLabelValues("quotes", "miss"))
	assert.Greater(t, count, initial)
}

func TestRecordRateLimitRejection(t *testing.T) {
	initial := testutil.ToFloat64(testMetrics.RateLimitRejections.WithLabelValues("OrderService.Create", "API_KEY"))
	testMetrics.RecordRateLimitRejection("OrderService.Create", "API_KEY")
	count := testutil.ToFloat64(testMetrics.RateLimitRejections.WithLabelValues("OrderService.Create", "API_KEY"))
	assert.Greater(t, count, initial)
}

func TestRecordRetryAttemptAndExhausted(t *testing.T) {
	initial := testutil.ToFloat64(testMetrics.RetryAttemptsTotal.WithLabelValues("OrderService.Create"))
	testMetrics.RecordRetryAttempt("OrderService.Create")
	count := testutil.ToFloat64(testMetrics.RetryAttemptsTotal.WithLabelValues("OrderService.Create"))
	assert.Greater(t, count, initial)

	exhaustedInitial := testutil.ToFloat64(testMetrics.RetryExhaustedTotal.WithLabelValues("OrderService.Create"))
	testMetrics.RecordRetryExhausted("OrderService.Create")
	exhaustedCount := testutil.ToFloat64(testMetrics.RetryExhaustedTotal.WithLabelValues("OrderService.Create"))
	assert.Greater(t, exhaustedCount, exhaustedInitial)
}

func TestRecordDBQuery(t *testing.T) {
	initial := testutil.ToFloat64(testMetrics.DBQueriesTotal.WithLabelValues("select", "idempotency_records", "success"))
	testMetrics.RecordDBQuery("select", "idempotency_records", "success", 5*time.Millisecond)
	count := testutil.ToFloat64(testMetrics.DBQueriesTotal.WithLabelValues("select", "idempotency_records", "success"))
	assert.Greater(t, count, initial)
}

func TestUpdateDBConnections(t *testing.T) {
	testMetrics.UpdateDBConnections(5, 3)
	assert.Equal(t, float64(5), testutil.ToFloat64(testMetrics.DBConnectionsActive))
	assert.Equal(t, float64(3), testutil.ToFloat64(testMetrics.DBConnectionsIdle))
}

func TestRecordError(t *testing.T) {
	initial := testutil.ToFloat64(testMetrics.ErrorsTotal.WithLabelValues("VALIDATION", "http"))
	testMetrics.RecordError("VALIDATION", "http")
	count := testutil.ToFloat64(testMetrics.ErrorsTotal.WithLabelValues("VALIDATION", "http"))
	assert.Greater(t, count, initial)
}

func TestRecordPanic(t *testing.T) {
	initial := testutil.ToFloat64(testMetrics.PanicsTotal.WithLabelValues("chain"))
	testMetrics.RecordPanic("chain")
	count := testutil.ToFloat64(testMetrics.PanicsTotal.WithLabelValues("chain"))
	assert.Greater(t, count, initial)
}
