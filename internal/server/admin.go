package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/askdesk/internal/audit"
	"github.com/ziadkadry99/askdesk/internal/handoff"
	"github.com/ziadkadry99/askdesk/internal/transcript"
)

const adminTokenHeader = "X-Admin-Token"

func (s *Server) registerAdminRoutes(r chi.Router) {
	r.Use(s.requireAdmin)
	r.Get("/status", s.handleStatus)
	r.Get("/sessions/{id}/transcript", s.handleTranscript)

	if s.handoffs != nil {
		sessions := s.orch.Sessions()
		lookup := func(sessionID string) string {
			if sess, ok := sessions.Get(sessionID); ok {
				return sess.ConversationID
			}
			return ""
		}
		handoff.RegisterRoutes(r, s.handoffs, lookup, s.logger)
		if trail := s.handoffs.Audit(); trail != nil {
			audit.RegisterRoutes(r, trail)
		}
	} else {
		r.Post("/requestHuman", s.handleRequestHumanLogOnly)
	}
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(adminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.AdminToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := audit.WithActor(r.Context(), audit.Actor{Type: audit.ActorAdmin, ID: r.RemoteAddr})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusResponse struct {
	PDFHash      any     `json:"pdfHash"`
	ChunksCount  *int    `json:"chunksCount"`
	UptimeSec    float64 `json:"uptimeSec"`
	LastReindex  any     `json:"lastReindex"`
	Sessions     int     `json:"sessions"`
	OpenHandoffs *int    `json:"openHandoffs,omitempty"`
}

// handleStatus reports the corpus snapshot. It queries retrieval with an
// empty query; a failed query only leaves chunksCount null.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cache := s.orch.Meta()
	resp := statusResponse{
		UptimeSec: time.Since(s.started).Seconds(),
		Sessions:  s.orch.Sessions().Len(),
	}
	resp.PDFHash, _ = cache.Get("pdfHash")
	resp.LastReindex, _ = cache.Get("createdAt")

	if s.retriever != nil {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.StatusTimeout)
		snap, err := s.retriever.Retrieve(ctx, "", 0)
		cancel()
		if err != nil {
			s.logger.Debug("status retrieval failed", "error", err)
		} else if snap != nil {
			if hash, ok := snap.Meta["pdfHash"]; ok && hash != nil {
				resp.PDFHash = hash
			}
			n := len(snap.Results)
			resp.ChunksCount = &n
		}
	}

	if s.handoffs != nil {
		if n, err := s.handoffs.OpenCount(r.Context()); err == nil {
			resp.OpenHandoffs = &n
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.orch.Sessions().Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	if r.URL.Query().Get("format") == "md" || s.renderer == nil {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(transcript.Markdown(sess)))
		return
	}

	page, err := s.renderer.HTML(sess)
	if err != nil {
		s.logger.Error("rendering transcript failed", "session_id", sess.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

type requestHumanBody struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason"`
}

// handleRequestHumanLogOnly serves /admin/requestHuman when no handoff
// store is configured.
func (s *Server) handleRequestHumanLogOnly(w http.ResponseWriter, r *http.Request) {
	var body requestHumanBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Info("manual human request", "session_id", body.SessionID, "reason", body.Reason)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
