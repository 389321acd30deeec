package handoff

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ConversationLookup maps a session id to its conversation id. It returns
// "" for unknown sessions.
type ConversationLookup func(sessionID string) string

// RegisterRoutes mounts the handoff routes on r. They are meant to sit
// behind the admin token check.
func RegisterRoutes(r chi.Router, store *Store, lookup ConversationLookup, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "handoff")

	r.Post("/requestHuman", handleRequestHuman(store, lookup, logger))
	r.Route("/handoffs", func(r chi.Router) {
		r.Get("/", handleList(store))
		r.Get("/{id}", handleGet(store))
		r.Post("/{id}/resolve", handleResolve(store, logger))
	})
}

type requestHumanBody struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason"`
}

func handleRequestHuman(store *Store, lookup ConversationLookup, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body requestHumanBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.SessionID == "" {
			writeError(w, http.StatusBadRequest, "sessionId required")
			return
		}

		req := Request{
			SessionID: body.SessionID,
			Source:    SourceManual,
			Reason:    body.Reason,
		}
		if lookup != nil {
			req.ConversationID = lookup(body.SessionID)
		}

		created, err := store.Create(r.Context(), req)
		if err != nil {
			logger.Error("recording manual handoff failed", "session_id", body.SessionID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		logger.Info("manual human request", "session_id", created.SessionID, "reason", created.Reason, "handoff_id", created.ID)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "id": created.ID})
	}
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := ListFilter{
			Status:    Status(r.URL.Query().Get("status")),
			SessionID: r.URL.Query().Get("session_id"),
		}
		if filter.Status != "" && filter.Status != StatusOpen && filter.Status != StatusResolved {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Limit = n
			}
		}

		requests, err := store.List(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(requests)
	}
}

func handleGet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(req)
	}
}

func handleResolve(store *Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		req, err := store.Resolve(r.Context(), id)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		logger.Info("handoff resolved", "handoff_id", id, "session_id", req.SessionID)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(req)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
