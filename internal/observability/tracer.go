// Package observability provides structured logging, metrics, and trace-id
// propagation for the interceptor chain.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used for every span the chain emits.
const TracerName = "github.com/riftlabs/interlock/chain"

// TracerConfig controls whether the chain participates in distributed
// tracing. No exporter pipeline is configured here — interlock only needs a
// trace id to stamp onto AppError and the audit row (§4.2, §7); shipping
// spans to a collector is the embedding service's concern.
type TracerConfig struct {
	ServiceName string
	Environment string
	Enabled     bool
}

// TracerProvider wraps the tracer used to start chain spans. When tracing is
// disabled it hands out a no-op tracer so callers never need to branch on
// cfg.Enabled themselves.
type TracerProvider struct {
	tracer trace.Tracer
}

// NewTracerProvider returns a TracerProvider backed by the globally
// registered OpenTelemetry tracer provider when enabled, or a no-op tracer
// otherwise. Registering an SDK tracer provider (batcher, exporter,
// sampler) is left to the process embedding interlock via otel.SetTracerProvider.
func NewTracerProvider(_ context.Context, cfg TracerConfig) (*TracerProvider, error) {
	if !cfg.Enabled {
		return &TracerProvider{tracer: trace.NewNoopTracerProvider().Tracer(TracerName)}, nil
	}
	return &TracerProvider{tracer: otel.Tracer(TracerName)}, nil
}

// Tracer returns the tracer for starting chain spans.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// ExtractTraceID returns the hex trace id of the span recorded on ctx, or
// the empty string when ctx carries no valid span context (§7 TraceID).
func ExtractTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
