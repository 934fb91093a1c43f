package api

import (
	"net/http"
	"strconv"
	"time"

	"emarket/libs/middleware"
	"emarket/libs/observability"
)

// NewHandler builds the full read API mux, wrapped in the standard
// middleware chain: permissive CORS, request-id propagation, metrics
// observation, and a 10s per-request timeout. Per-client rate limiting is
// mounted only when rateLimitEnabled is set — it is off by default, since
// the documented rate limit is the ingest side's upstream courtesy limiter,
// not an API-consumer limit.
func NewHandler(srv *Server, metrics *observability.PipelineMetrics, reg *observability.Registry, rateLimitEnabled bool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/live", srv.Live)
	mux.HandleFunc("/summary", srv.Summary)
	mux.HandleFunc("/prices", srv.Prices)
	mux.HandleFunc("/np/now", srv.Now)
	mux.Handle("/metrics", metricsHandler(reg))

	var handler http.Handler = mux
	handler = observeMetrics(metrics, handler)
	handler = middleware.RequestID(handler)
	handler = middleware.CORS(middleware.PermissiveCORSConfig())(handler)
	if rateLimitEnabled {
		handler = middleware.NewRateLimiterFromEnv().Middleware(handler)
	}
	handler = http.TimeoutHandler(handler, 10*time.Second, "request timed out")
	return handler
}

func metricsHandler(reg *observability.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		reg.WriteText(w)
	})
}

// statusRecorder captures the status code written so observeMetrics can
// record it after the handler returns.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func observeMetrics(metrics *observability.PipelineMetrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		duration := time.Since(start)

		metrics.HTTPRequests.Inc("method", r.Method, "path", r.URL.Path, "status", strconv.Itoa(rec.status))
		metrics.HTTPLatency.ObserveDuration(duration, "method", r.Method, "path", r.URL.Path)
	})
}
