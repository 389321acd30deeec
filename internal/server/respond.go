package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ziadkadry99/askdesk/internal/orchestrator"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// chatErrorStatus maps a Chat error onto the status code and the message
// shown to the caller.
func chatErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidInput):
		return http.StatusBadRequest, orchestrator.ErrInvalidInput.Error()
	case errors.Is(err, orchestrator.ErrUpstreamUnavailable):
		return http.StatusBadGateway, orchestrator.ErrUpstreamUnavailable.Error()
	default:
		return http.StatusInternalServerError, orchestrator.ErrInternal.Error()
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
