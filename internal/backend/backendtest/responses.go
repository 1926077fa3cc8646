package backendtest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	app_errors "lecture-me/client/internal/errors"
)

// The backend reports errors as {"detail": ...}. Validation failures carry a
// list of field errors, everything else a string.

type detailResponse struct {
	Detail interface{} `json:"detail"`
}

type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// respondWithError maps sentinel errors to status codes.
func respondWithError(w http.ResponseWriter, err error) {
	var statusCode int
	var detail interface{}

	switch {
	case errors.Is(err, app_errors.ErrNotFound):
		statusCode = http.StatusNotFound
		detail = "Chat not found"
	case errors.Is(err, app_errors.ErrValidation):
		statusCode = http.StatusUnprocessableEntity
		detail = []fieldError{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"}}
	case errors.Is(err, app_errors.ErrUnauthorized):
		statusCode = http.StatusUnauthorized
		detail = "Not authenticated"
	default:
		statusCode = http.StatusInternalServerError
		detail = "Internal Server Error"
	}

	slog.Debug("Fake backend responding with error", "status_code", statusCode, "internal_error", err)
	respondWithJSON(w, statusCode, detailResponse{Detail: detail})
}

func respondWithStatus(w http.ResponseWriter, code int, detail string) {
	respondWithJSON(w, code, detailResponse{Detail: detail})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

// writeFragment sends one raw text fragment and flushes it so the client sees
// it as a separate read.
func writeFragment(w http.ResponseWriter, fragment string) error {
	if _, err := fmt.Fprint(w, fragment); err != nil {
		return fmt.Errorf("failed to write fragment to stream: %w", err)
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}
