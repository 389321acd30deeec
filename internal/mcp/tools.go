package mcp

import "github.com/mark3labs/mcp-go/mcp"

// askTool defines the ask MCP tool.
var askTool = mcp.NewTool("ask",
	mcp.WithDescription("Ask the help desk a question. Answers are grounded in the indexed knowledge base and flag when a human should follow up."),
	mcp.WithString("message",
		mcp.Required(),
		mcp.Description("The user's question"),
	),
	mcp.WithString("session_id",
		mcp.Description("Continue an existing conversation; omit to start a new one"),
	),
	mcp.WithString("lang",
		mcp.Description("Language hint for the reply, e.g. en-US or hi-IN"),
	),
)

// searchKnowledgeTool defines the search_knowledge MCP tool.
var searchKnowledgeTool = mcp.NewTool("search_knowledge",
	mcp.WithDescription("Search the knowledge base directly and return the ranked passages without generating an answer."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of passages to return (default 3)"),
	),
)

// getTranscriptTool defines the get_transcript MCP tool.
var getTranscriptTool = mcp.NewTool("get_transcript",
	mcp.WithDescription("Get the retained history of a conversation as Markdown."),
	mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("Session identifier returned by ask"),
	),
)

// requestHumanTool defines the request_human MCP tool.
var requestHumanTool = mcp.NewTool("request_human",
	mcp.WithDescription("Queue a conversation for a human operator."),
	mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("Session identifier returned by ask"),
	),
	mcp.WithString("reason",
		mcp.Description("Why a human is needed"),
	),
)
