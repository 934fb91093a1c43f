package observability

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"
)

var logger = log.New(os.Stdout, "", 0)

func LogEvent(ctx context.Context, level string, event string, fields map[string]any) {
	payload := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339),
		"level": level,
		"event": event,
	}

	info := RunInfoFromContext(ctx)
	if info.RequestID != "" {
		payload["request_id"] = info.RequestID
	}
	if info.RunID != "" {
		payload["run_id"] = info.RunID
	}
	if info.TaskID != "" {
		payload["task_id"] = info.TaskID
	}
	if info.Series != "" {
		payload["series"] = info.Series
	}

	for key, value := range normalizeFields(fields) {
		payload[key] = value
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("{\"level\":\"error\",\"event\":\"log_marshal_failed\",\"error\":%q}", err.Error())
		return
	}
	logger.Print(string(raw))
}

// LogImportStart logs the start of one windowed upstream fetch.
func LogImportStart(ctx context.Context, series string, from, to time.Time) {
	LogEvent(ctx, "info", "import_start", map[string]any{
		"series": series,
		"from":   from.Format(time.RFC3339),
		"to":     to.Format(time.RFC3339),
	})
}

// LogImportEnd logs the outcome of one windowed upstream fetch.
func LogImportEnd(ctx context.Context, series string, imported int, duration time.Duration, err error) {
	fields := map[string]any{
		"series":     series,
		"imported":   imported,
		"latency_ms": duration.Milliseconds(),
		"success":    err == nil,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	LogEvent(ctx, "info", "import_end", fields)
}

// LogAggregateRun logs one aggregator Work pass.
func LogAggregateRun(ctx context.Context, destSeries string, upTo time.Time, err error) {
	fields := map[string]any{
		"series":  destSeries,
		"up_to":   upTo.Format(time.RFC3339),
		"success": err == nil,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	LogEvent(ctx, "info", "aggregate_run", fields)
}

func normalizeFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		switch key {
		case "input", "payload":
			out[key] = RedactValue(value)
			continue
		}
		if err, ok := value.(error); ok {
			out[key] = err.Error()
			continue
		}
		out[key] = value
	}
	return out
}
