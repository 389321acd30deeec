package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/askdesk/internal/config"
	"github.com/ziadkadry99/askdesk/internal/db"
	"github.com/ziadkadry99/askdesk/internal/gate"
	"github.com/ziadkadry99/askdesk/internal/handoff"
	"github.com/ziadkadry99/askdesk/internal/llm"
	"github.com/ziadkadry99/askdesk/internal/logging"
	"github.com/ziadkadry99/askdesk/internal/orchestrator"
	"github.com/ziadkadry99/askdesk/internal/retrieval"
	"github.com/ziadkadry99/askdesk/internal/session"
)

// mockRetriever implements retrieval.Retriever for testing.
type mockRetriever struct {
	hits  []retrieval.Hit
	err   error
	limit int
}

func (m *mockRetriever) Retrieve(_ context.Context, _ string, topK int) (*retrieval.Response, error) {
	m.limit = topK
	if m.err != nil {
		return nil, m.err
	}
	hits := m.hits
	if topK < len(hits) {
		hits = hits[:topK]
	}
	return &retrieval.Response{Results: hits}, nil
}

// mockGenerator implements llm.Provider for testing.
type mockGenerator struct {
	reply string
	err   error
}

func (m *mockGenerator) Name() string { return "mock" }

func (m *mockGenerator) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &llm.CompletionResponse{Content: m.reply}, nil
}

func newTestServer(t *testing.T, gen *mockGenerator, withHandoffs bool) (*Server, *mockRetriever, *handoff.Store) {
	t.Helper()
	retriever := &mockRetriever{hits: []retrieval.Hit{
		{ID: "c1", Text: "The library is open 8am-10pm.", Score: 0.82},
		{ID: "c2", Text: "Closed on public holidays.", Score: 0.41},
	}}

	orch, err := orchestrator.New(orchestrator.ConfigFrom(config.DefaultConfig()), orchestrator.Deps{
		Sessions:  session.NewStore(session.Policy{}, logging.Discard()),
		Retriever: retriever,
		Generator: gen,
		Gate:      gate.New(0.25, config.DefaultUncertaintyPhrases),
		Logger:    logging.Discard(),
	})
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}

	var store *handoff.Store
	if withHandoffs {
		database, err := db.OpenMemory()
		if err != nil {
			t.Fatalf("OpenMemory: %v", err)
		}
		t.Cleanup(func() { database.Close() })
		store = handoff.NewStore(database)
	}
	return NewServer(orch, retriever, store, 3, time.Second), retriever, store
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name     string
		tool     mcp.Tool
		wantName string
	}{
		{"ask", askTool, "ask"},
		{"search_knowledge", searchKnowledgeTool, "search_knowledge"},
		{"get_transcript", getTranscriptTool, "get_transcript"},
		{"request_human", requestHumanTool, "request_human"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tool.Name != tt.wantName {
				t.Errorf("tool name = %q, want %q", tt.tool.Name, tt.wantName)
			}
			if tt.tool.Description == "" {
				t.Error("tool description should not be empty")
			}
		})
	}
}

func TestNewServer(t *testing.T) {
	srv, _, _ := newTestServer(t, &mockGenerator{reply: "ok"}, false)
	if srv.mcp == nil {
		t.Fatal("MCP server not initialized")
	}
	if srv.topK != 3 {
		t.Errorf("topK = %d, want 3", srv.topK)
	}
	if srv.timeout != time.Second {
		t.Errorf("timeout = %v, want 1s", srv.timeout)
	}

	defaults := NewServer(srv.orch, srv.retriever, nil, 0, 0)
	if defaults.topK != 3 || defaults.timeout != defaultSearchTimeout {
		t.Errorf("defaults = (%d, %v), want (3, %v)", defaults.topK, defaults.timeout, defaultSearchTimeout)
	}
}

func TestHandleAsk(t *testing.T) {
	srv, _, _ := newTestServer(t, &mockGenerator{reply: "The library is open 8am-10pm."}, false)
	ctx := context.Background()

	t.Run("answers and continues the session", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"message": "When is the library open?"}

		result, err := srv.handleAsk(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %v", result.Content)
		}
		text := resultText(t, result)
		if !strings.HasPrefix(text, "The library is open 8am-10pm.") {
			t.Errorf("unexpected reply: %q", text)
		}
		if !strings.Contains(text, "needs_human: no") || !strings.Contains(text, "sources: c1 (0.82), c2 (0.41)") {
			t.Errorf("missing footer: %q", text)
		}
	})

	t.Run("missing message", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{}

		result, err := srv.handleAsk(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Error("expected tool error for missing message")
		}
	})

	t.Run("empty message", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"message": "  "}

		result, _ := srv.handleAsk(ctx, req)
		if !result.IsError {
			t.Error("expected tool error for empty message")
		}
	})
}

func TestHandleAskUpstreamFailure(t *testing.T) {
	srv, _, _ := newTestServer(t, &mockGenerator{err: errors.New("timeout")}, false)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"message": "hi"}
	result, err := srv.handleAsk(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error")
	}
	if !strings.Contains(resultText(t, result), "unavailable") {
		t.Errorf("unexpected error text: %q", resultText(t, result))
	}
}

func TestHandleAskNeedsHuman(t *testing.T) {
	srv, _, _ := newTestServer(t, &mockGenerator{reply: "I don't know."}, false)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"message": "Who won in 1987?"}
	result, _ := srv.handleAsk(context.Background(), req)
	if !strings.Contains(resultText(t, result), "needs_human: yes (contact staff@sihchatbot.com)") {
		t.Errorf("expected handoff footer, got %q", resultText(t, result))
	}
}

func TestHandleSearchKnowledge(t *testing.T) {
	srv, retriever, _ := newTestServer(t, &mockGenerator{reply: "ok"}, false)
	ctx := context.Background()

	t.Run("default limit", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"query": "library hours"}

		result, err := srv.handleSearchKnowledge(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if retriever.limit != 3 {
			t.Errorf("limit = %d, want 3", retriever.limit)
		}
		text := resultText(t, result)
		if !strings.Contains(text, "1. [c1] score 0.820") || !strings.Contains(text, "2. [c2]") {
			t.Errorf("unexpected passages: %q", text)
		}
	})

	t.Run("explicit limit", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"query": "library hours", "limit": float64(1)}

		result, _ := srv.handleSearchKnowledge(ctx, req)
		if strings.Contains(resultText(t, result), "[c2]") {
			t.Error("expected only one passage")
		}
	})

	t.Run("no results", func(t *testing.T) {
		retriever.hits = nil
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"query": "parking"}

		result, _ := srv.handleSearchKnowledge(ctx, req)
		if result.IsError || !strings.Contains(resultText(t, result), "No passages found") {
			t.Errorf("unexpected result: %+v", result)
		}
	})

	t.Run("retrieval error", func(t *testing.T) {
		retriever.err = errors.New("down")
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"query": "parking"}

		result, _ := srv.handleSearchKnowledge(ctx, req)
		if !result.IsError {
			t.Error("expected tool error")
		}
	})
}

// blockingRetriever waits until its context is done.
type blockingRetriever struct{}

func (blockingRetriever) Retrieve(ctx context.Context, _ string, _ int) (*retrieval.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestHandleSearchKnowledgeTimesOut(t *testing.T) {
	base, _, _ := newTestServer(t, &mockGenerator{reply: "ok"}, false)
	srv := NewServer(base.orch, blockingRetriever{}, nil, 3, 50*time.Millisecond)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"query": "x"}

	done := make(chan *mcp.CallToolResult, 1)
	go func() {
		result, _ := srv.handleSearchKnowledge(context.Background(), req)
		done <- result
	}()

	select {
	case result := <-done:
		if !result.IsError {
			t.Errorf("expected tool error after timeout, got %+v", result)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("search_knowledge did not return after its retrieval timeout")
	}
}

func TestHandleGetTranscript(t *testing.T) {
	srv, _, _ := newTestServer(t, &mockGenerator{reply: "Open 8am-10pm."}, false)
	ctx := context.Background()

	ask := mcp.CallToolRequest{}
	ask.Params.Arguments = map[string]any{"message": "Library hours?", "session_id": "sess-mcp"}
	if _, err := srv.handleAsk(ctx, ask); err != nil {
		t.Fatalf("ask: %v", err)
	}

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"session_id": "sess-mcp"}
	result, err := srv.handleGetTranscript(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "Library hours?") || !strings.Contains(text, "Open 8am-10pm.") {
		t.Errorf("unexpected transcript: %q", text)
	}

	req.Params.Arguments = map[string]any{"session_id": "unknown"}
	result, _ = srv.handleGetTranscript(ctx, req)
	if !result.IsError {
		t.Error("expected tool error for unknown session")
	}
}

func TestHandleRequestHuman(t *testing.T) {
	srv, _, store := newTestServer(t, &mockGenerator{reply: "ok"}, true)
	ctx := context.Background()

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"session_id": "sess-x", "reason": "wants a person"}
	result, err := srv.handleRequestHuman(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %v", result.Content)
	}

	open, err := store.List(ctx, handoff.ListFilter{Status: handoff.StatusOpen})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(open) != 1 || open[0].Reason != "wants a person" || open[0].Source != handoff.SourceManual {
		t.Errorf("unexpected handoffs: %+v", open)
	}
}

func TestFormatHitsTruncates(t *testing.T) {
	out := formatHits([]retrieval.Hit{{ID: "long", Text: strings.Repeat("पाठ", 300), Score: 0.5}})
	if !strings.Contains(out, "...") {
		t.Error("expected truncated passage")
	}
}
