package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/lanewise/kbengine/internal/core/ports"
)

// Server exposes the knowledge-base query surface as MCP tools so agent
// frontends can call the engine over stdio.
type Server struct {
	kbManager ports.KnowledgeBaseManager
	querySvc  ports.KnowledgeQueryService
}

func NewServer(kbManager ports.KnowledgeBaseManager, querySvc ports.KnowledgeQueryService) *Server {
	return &Server{
		kbManager: kbManager,
		querySvc:  querySvc,
	}
}

func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("lanewise-kbengine", "1.0.0", server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool("kb_query",
		mcp.WithDescription("Answer a natural-language question against a knowledge base. Returns the answer text, confidence, extracted performance metrics and source references as JSON."),
		mcp.WithString("kb_id", mcp.Required(), mcp.Description("Knowledge base identifier")),
		mcp.WithString("query", mcp.Required(), mcp.Description("The question to answer")),
	), s.handleQuery)

	srv.AddTool(mcp.NewTool("kb_list",
		mcp.WithDescription("List available knowledge bases with their status and document counts."),
	), s.handleList)

	return srv
}

// ServeStdio blocks until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.MCPServer())
}

func (s *Server) handleQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kbID, err := request.RequireString("kb_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	answer, err := s.querySvc.AnswerQuery(ctx, kbID, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}

	payload, err := json.Marshal(answer)
	if err != nil {
		return nil, fmt.Errorf("marshal answer: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (s *Server) handleList(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kbs, err := s.kbManager.ListKnowledgeBases(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}

	payload, err := json.Marshal(kbs)
	if err != nil {
		return nil, fmt.Errorf("marshal knowledge bases: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}
