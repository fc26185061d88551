package checker

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// checkerMetrics holds the OTel instruments emitted while checking
// references against backends. Instruments are registered against the
// global delegating provider at init time, so they forward to whatever
// provider cmd/hallucinate configures via setupMetrics.
var checkerMetrics struct {
	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter
	backendCall metric.Int64Counter
	backendMs   metric.Float64Histogram
}

func init() {
	m := otel.Meter("github.com/gianlucasb/hallucinator/verify/checker")
	checkerMetrics.cacheHits, _ = m.Int64Counter("hallucinator.cache.hits",
		metric.WithDescription("Query cache hits (L1 or L2)"),
		metric.WithUnit("{hit}"),
	)
	checkerMetrics.cacheMisses, _ = m.Int64Counter("hallucinator.cache.misses",
		metric.WithDescription("Query cache misses"),
		metric.WithUnit("{miss}"),
	)
	checkerMetrics.backendCall, _ = m.Int64Counter("hallucinator.backend.calls",
		metric.WithDescription("Backend queries issued, by backend and outcome"),
		metric.WithUnit("{call}"),
	)
	checkerMetrics.backendMs, _ = m.Float64Histogram("hallucinator.backend.latency_ms",
		metric.WithDescription("Backend query latency"),
		metric.WithUnit("ms"),
	)
}

func recordCacheHit(ctx context.Context, backendName string) {
	checkerMetrics.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backendName)))
}

func recordCacheMiss(ctx context.Context, backendName string) {
	checkerMetrics.cacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backendName)))
}

func recordBackendCall(ctx context.Context, backendName, outcome string, ms float64) {
	attrs := metric.WithAttributes(
		attribute.String("backend", backendName),
		attribute.String("outcome", outcome),
	)
	checkerMetrics.backendCall.Add(ctx, 1, attrs)
	checkerMetrics.backendMs.Record(ctx, ms, attrs)
}
