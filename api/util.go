// Package api exposes the chat core over HTTP and a WebSocket subscription.
package api

import (
	"chat-sync/errors"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// fail maps err onto the error taxonomy. Server side failures are logged
// and never echoed to the client.
func fail(w http.ResponseWriter, log *slog.Logger, err error) {
	status := errors.MapToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", "error", err)
		writeError(w, status, http.StatusText(status))
		return
	}
	writeError(w, status, err.Error())
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err)
	}
	return nil
}
