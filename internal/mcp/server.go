// Package mcp exposes askdesk to MCP clients over stdio.
package mcp

import (
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/askdesk/internal/handoff"
	"github.com/ziadkadry99/askdesk/internal/orchestrator"
	"github.com/ziadkadry99/askdesk/internal/retrieval"
)

// Version is set via ldflags at build time.
var Version = "dev"

const defaultSearchTimeout = 8 * time.Second

// Server wraps an MCP server that exposes the chat orchestrator as tools.
type Server struct {
	orch      *orchestrator.Orchestrator
	retriever retrieval.Retriever
	handoffs  *handoff.Store
	topK      int
	timeout   time.Duration
	mcp       *server.MCPServer
}

// NewServer creates a new MCP server. handoffs may be nil, in which case the
// request_human tool is not offered. timeout bounds each search_knowledge
// retrieval call.
func NewServer(orch *orchestrator.Orchestrator, retriever retrieval.Retriever, handoffs *handoff.Store, topK int, timeout time.Duration) *Server {
	if topK <= 0 {
		topK = 3
	}
	if timeout <= 0 {
		timeout = defaultSearchTimeout
	}
	s := &Server{
		orch:      orch,
		retriever: retriever,
		handoffs:  handoffs,
		topK:      topK,
		timeout:   timeout,
	}

	s.mcp = server.NewMCPServer(
		"askdesk",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(askTool, s.handleAsk)
	s.mcp.AddTool(searchKnowledgeTool, s.handleSearchKnowledge)
	s.mcp.AddTool(getTranscriptTool, s.handleGetTranscript)
	if s.handoffs != nil {
		s.mcp.AddTool(requestHumanTool, s.handleRequestHuman)
	}
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
