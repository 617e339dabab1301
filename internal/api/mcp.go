package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kbridge-ai/kbridge/internal/composer"
)

// NewMCPServer creates an MCP server exposing knowledge-base querying as
// a tool for agent hosts.
func NewMCPServer(answerer QueryAnswerer) *server.MCPServer {
	s := server.NewMCPServer(
		"kbridge",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("kbridge — query a knowledge base with automatic metadata filtering and citations."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("query_knowledge_base",
			mcp.WithDescription("Ask the knowledge base a question. Temporal expressions and person names in the query are turned into metadata filters automatically, and the answer carries citations."),
			mcp.WithString("query", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithString("history", mcp.Description("Optional JSON array of prior {role, content} turns")),
		),
		mcpQuery(answerer),
	)

	return s
}

func mcpQuery(answerer QueryAnswerer) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		var history []composer.Turn
		if raw := req.GetString("history", ""); raw != "" {
			if err := json.Unmarshal([]byte(raw), &history); err != nil {
				return mcpError(fmt.Sprintf("invalid history: %v", err)), nil
			}
		}

		answer, _, err := answerer.Answer(ctx, query, history)
		if err != nil {
			return mcpError(fmt.Sprintf("query failed: %v", err)), nil
		}
		return mcpText(answer), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
