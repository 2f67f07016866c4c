package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Server wraps the mcp-go MCPServer with netsight-engine defaults.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates a new MCP server instance. hooks is optional; the
// engine passes the audit logger's hooks so every tool call is recorded.
func NewServer(name, version string, logger *zap.Logger, hooks *server.Hooks) *Server {
	opts := []server.ServerOption{
		server.WithToolCapabilities(true),
	}
	if hooks != nil {
		opts = append(opts, server.WithHooks(hooks))
	}

	mcpServer := server.NewMCPServer(name, version, opts...)

	return &Server{
		mcp:    mcpServer,
		logger: logger,
	}
}

// MCP returns the underlying MCPServer for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// NewStreamableHTTPServer creates an HTTP transport server wrapping this MCP server.
// The HTTP mux handles routing to /mcp, so no endpoint path is configured here.
// Stateless mode keeps each tool call inside a single request, which is what
// lets the auth middleware scope a database connection per call.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}

// RegisterTool is a convenience wrapper for registering a tool.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}
