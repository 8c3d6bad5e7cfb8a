package chain_test

import "github.com/riftlabs/interlock/internal/observability"

// testMetrics is shared across this package's test files: promauto
// registers every metric against the global Prometheus registry, so a
// second construction with the same namespace/subsystem would panic on
// duplicate registration.
var testMetrics = observability.NewMetricsCollector("test_chain", "stage")
