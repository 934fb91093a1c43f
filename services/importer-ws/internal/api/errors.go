package api

import (
	"encoding/json"
	"log"
	"net/http"
)

// apiError is a handler-level error that carries its own HTTP status.
// badRequest (400) exposes its message to the client; server errors (500)
// are logged in full but only ever return a generic message.
type apiError struct {
	status  int
	message string
	cause   error
}

func (e *apiError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func badRequest(msg string, cause error) *apiError {
	return &apiError{status: http.StatusBadRequest, message: msg, cause: cause}
}

func serverError(cause error) *apiError {
	return &apiError{status: http.StatusInternalServerError, message: "internal server error", cause: cause}
}

func writeError(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*apiError)
	if !ok {
		apiErr = serverError(err)
	}

	if apiErr.status >= 500 {
		log.Printf("api error: %v", apiErr)
	} else {
		log.Printf("bad request: %v", apiErr)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": apiErr.message})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}
