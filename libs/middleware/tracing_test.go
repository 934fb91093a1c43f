package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// sentinel handler that records the request_id it sees in context.
func echoRequestIDHandler(t *testing.T, got *string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = RequestIDFromRequest(r)
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestID_HeaderPresent_Propagated(t *testing.T) {
	const want = "req_12345_abcdef"
	var got string

	handler := RequestID(echoRequestIDHandler(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", want)
	rw := httptest.NewRecorder()

	handler.ServeHTTP(rw, req)

	if got != want {
		t.Errorf("context request_id = %q; want %q", got, want)
	}
	if rw.Header().Get("X-Request-ID") != want {
		t.Errorf("response X-Request-ID = %q; want %q", rw.Header().Get("X-Request-ID"), want)
	}
}

func TestRequestID_HeaderAbsent_NewIDGenerated(t *testing.T) {
	var got string

	handler := RequestID(echoRequestIDHandler(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rw := httptest.NewRecorder()

	handler.ServeHTTP(rw, req)

	if got == "" {
		t.Error("expected a generated request_id in context, got empty string")
	}
	if !strings.HasPrefix(got, "req_") {
		t.Errorf("generated request_id %q does not start with 'req_'", got)
	}
	if rw.Header().Get("X-Request-ID") != got {
		t.Errorf("response X-Request-ID = %q; want %q", rw.Header().Get("X-Request-ID"), got)
	}
}

func TestRequestID_AlwaysSetsResponseHeader(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	rw := httptest.NewRecorder()

	handler.ServeHTTP(rw, req)

	if rw.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID response header to always be set")
	}
}

func TestRequestID_UniquePerRequest(t *testing.T) {
	ids := make([]string, 3)
	for i := range ids {
		var got string
		RequestID(echoRequestIDHandler(t, &got)).ServeHTTP(
			httptest.NewRecorder(),
			httptest.NewRequest(http.MethodGet, "/", nil),
		)
		ids[i] = got
	}

	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate request_id generated: %q", id)
		}
		seen[id] = true
	}
}
