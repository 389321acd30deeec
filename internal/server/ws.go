package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/askdesk/internal/orchestrator"
)

const wsReadLimit = 64 << 10

// wsResponse flattens a chat result into a typed frame.
type wsResponse struct {
	Type string `json:"type"`
	*orchestrator.Result
}

type wsError struct {
	Type      string `json:"type"`
	Error     string `json:"error"`
	SessionID string `json:"sessionId,omitempty"`
}

func (s *Server) upgrader() websocket.Upgrader {
	u := websocket.Upgrader{}
	if s.cfg.AllowAll {
		u.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return u
}

// handleWebSocket runs one chat exchange per inbound frame. The socket
// keeps the session id issued by the first exchange.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	sessionID := ""
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var req orchestrator.Request
		if err := json.Unmarshal(msg, &req); err != nil {
			s.send(conn, wsError{Type: "error", Error: "invalid message format", SessionID: sessionID})
			continue
		}
		if req.SessionID == "" {
			req.SessionID = sessionID
		}

		res, err := s.orch.Chat(r.Context(), req)
		if err != nil {
			_, text := chatErrorStatus(err)
			s.send(conn, wsError{Type: "error", Error: text, SessionID: req.SessionID})
			continue
		}
		sessionID = res.SessionID
		s.send(conn, wsResponse{Type: "response", Result: res})
	}
}

func (s *Server) send(conn *websocket.Conn, v any) {
	if err := conn.WriteJSON(v); err != nil {
		s.logger.Warn("websocket write failed", "error", err)
	}
}
