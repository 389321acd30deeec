package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ziadkadry99/askdesk/internal/orchestrator"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.Request
	// An empty body is a request without a message; Chat rejects it.
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.orch.Chat(r.Context(), req)
	if err != nil {
		status, msg := chatErrorStatus(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("chat error", "error", err)
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
