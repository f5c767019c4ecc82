package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/edustack/companion/internal/agent"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Companion Companion
	Store     StoreReader
}

// NewMCPServer creates an MCP server exposing the companion over stdio so
// agent-aware editors and assistants can drive it directly.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"companion",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("companion is a conversational learning assistant tracking each learner's career goals, progress, and struggles."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("chat",
			mcp.WithDescription("Send a message to the learning companion and get its reply."),
			mcp.WithString("user_id", mcp.Description("Learner identifier"), mcp.Required()),
			mcp.WithString("message", mcp.Description("The message to send"), mcp.Required()),
		),
		mcpChat(deps),
	)

	s.AddTool(
		mcp.NewTool("get_profile",
			mcp.WithDescription("Fetch a learner's accumulated profile as JSON."),
			mcp.WithString("user_id", mcp.Description("Learner identifier"), mcp.Required()),
		),
		mcpGetProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("list_recommendations",
			mcp.WithDescription("List stored course recommendations for a learner, highest priority first."),
			mcp.WithString("user_id", mcp.Description("Learner identifier"), mcp.Required()),
		),
		mcpListRecommendations(deps),
	)

	return s
}

func mcpChat(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		out, err := deps.Companion.Respond(ctx, agent.TurnInput{
			UserID:  userID,
			Message: message,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("chat failed: %v", err)), nil
		}

		return mcpText(out.Reply), nil
	}
}

func mcpGetProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}

		p, ok, err := deps.Store.GetProfile(ctx, userID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load profile: %v", err)), nil
		}
		if !ok {
			return mcpError("profile not found"), nil
		}

		b, err := json.Marshal(p)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal profile: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListRecommendations(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}

		recs, err := deps.Store.GetRecommendations(ctx, userID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load recommendations: %v", err)), nil
		}
		if len(recs) == 0 {
			return mcpText("[]"), nil
		}

		type recResult struct {
			Title    string `json:"title"`
			Reason   string `json:"reason"`
			Priority int    `json:"priority"`
		}
		results := make([]recResult, len(recs))
		for i, r := range recs {
			results[i] = recResult{Title: r.Title, Reason: r.Reason, Priority: r.Priority}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
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
