// tracing.go — request-id propagation middleware for the read API.
//
// Usage:
//   handler = middleware.RequestID(existingHandler)
//
// The middleware reads X-Request-ID from the request header. If absent it
// generates a new one via observability.NewRequestID(). The id is injected
// into the request context via observability.WithRequestID so
// observability.LogEvent calls made with that context include it as
// request_id.
package middleware

import (
	"net/http"

	"emarket/libs/observability"
)

const requestIDHeader = "X-Request-ID"

// RequestID is an HTTP middleware that propagates a per-request identifier.
// It reads X-Request-ID from the incoming request, generates one if absent,
// injects it into the request context, and echoes it back in the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = observability.NewRequestID()
		}

		ctx := observability.WithRequestID(r.Context(), requestID)
		w.Header().Set(requestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromRequest retrieves the request_id from the request context.
// Returns empty string if not set.
func RequestIDFromRequest(r *http.Request) string {
	return observability.RequestIDFromContext(r.Context())
}
