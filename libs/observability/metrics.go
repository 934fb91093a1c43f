package observability

import (
	"context"
	"time"
)

// RecordImportBatch logs a structured metric event for one completed
// import window, for log-based aggregation alongside the Prometheus
// counters in prometheus.go.
func RecordImportBatch(ctx context.Context, series string, points int, duration time.Duration, err error) {
	fields := map[string]any{
		"name":       "import_batch",
		"series":     series,
		"points":     points,
		"latency_ms": duration.Milliseconds(),
		"success":    err == nil,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	LogEvent(ctx, "info", "metric", fields)
}

// RecordAggregateBucket logs a structured metric event for one written
// aggregate bucket.
func RecordAggregateBucket(ctx context.Context, series string, at time.Time, err error) {
	fields := map[string]any{
		"name":    "aggregate_bucket",
		"series":  series,
		"at":      at.Format(time.RFC3339),
		"success": err == nil,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	LogEvent(ctx, "info", "metric", fields)
}
