package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/askdesk/internal/audit"
	"github.com/ziadkadry99/askdesk/internal/handoff"
	"github.com/ziadkadry99/askdesk/internal/orchestrator"
	"github.com/ziadkadry99/askdesk/internal/retrieval"
	"github.com/ziadkadry99/askdesk/internal/transcript"
)

// handleAsk runs one chat exchange through the orchestrator.
func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: message"), nil
	}

	res, err := s.orch.Chat(ctx, orchestrator.Request{
		Message:   message,
		SessionID: request.GetString("session_id", ""),
		Lang:      request.GetString("lang", ""),
	})
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrInvalidInput):
			return mcp.NewToolResultError("message must not be empty"), nil
		case errors.Is(err, orchestrator.ErrUpstreamUnavailable):
			return mcp.NewToolResultError("the answer service is unavailable, try again later"), nil
		default:
			return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
		}
	}

	return mcp.NewToolResultText(formatResult(res)), nil
}

// handleSearchKnowledge queries retrieval without generation.
func (s *Server) handleSearchKnowledge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", s.topK)
	if limit <= 0 {
		limit = s.topK
	}

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.retriever.Retrieve(rctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(resp.Results) == 0 {
		return mcp.NewToolResultText("No passages found. The knowledge base may not be indexed yet."), nil
	}

	return mcp.NewToolResultText(formatHits(resp.Results)), nil
}

// handleGetTranscript returns a session's retained history.
func (s *Server) handleGetTranscript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session_id"), nil
	}

	sess, ok := s.orch.Sessions().Get(sessionID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown session %q", sessionID)), nil
	}
	return mcp.NewToolResultText(transcript.Markdown(sess)), nil
}

// handleRequestHuman records a manual handoff request.
func (s *Server) handleRequestHuman(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session_id"), nil
	}

	req := handoff.Request{
		SessionID: sessionID,
		Source:    handoff.SourceManual,
		Reason:    request.GetString("reason", ""),
	}
	if sess, ok := s.orch.Sessions().Get(sessionID); ok {
		req.ConversationID = sess.ConversationID
	}

	ctx = audit.WithActor(ctx, audit.Actor{Type: audit.ActorAgent, ID: "mcp"})
	created, err := s.handoffs.Create(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("recording request failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Handoff request %s queued for session %s.", created.ID, sessionID)), nil
}

func formatResult(res *orchestrator.Result) string {
	var b strings.Builder
	b.WriteString(res.ReplyText)
	b.WriteString("\n\n---\n")
	fmt.Fprintf(&b, "session_id: %s\n", res.SessionID)
	if res.NeedsHuman {
		contact := ""
		if res.ContactInfo != nil {
			contact = *res.ContactInfo
		}
		fmt.Fprintf(&b, "needs_human: yes (contact %s)\n", contact)
	} else {
		b.WriteString("needs_human: no\n")
	}
	if len(res.UsedChunks) > 0 {
		ids := make([]string, len(res.UsedChunks))
		for i, c := range res.UsedChunks {
			ids[i] = fmt.Sprintf("%s (%.2f)", c.ID, c.Score)
		}
		fmt.Fprintf(&b, "sources: %s\n", strings.Join(ids, ", "))
	}
	return b.String()
}

func formatHits(hits []retrieval.Hit) string {
	var b strings.Builder
	for i, h := range hits {
		fmt.Fprintf(&b, "%d. [%s] score %.3f\n", i+1, h.ID, h.Score)
		text := strings.TrimSpace(h.Text)
		if runes := []rune(text); len(runes) > 500 {
			text = string(runes[:500]) + "..."
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
