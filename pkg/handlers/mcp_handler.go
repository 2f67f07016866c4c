package handlers

import (
	"net/http"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/mcp"
	mcpauth "github.com/netsight-ai/netsight-engine/pkg/mcp/auth"
	"github.com/netsight-ai/netsight-engine/pkg/middleware"
)

// MCPHandler handles MCP protocol requests over HTTP.
type MCPHandler struct {
	httpServer *server.StreamableHTTPServer
	logger     *zap.Logger
}

// NewMCPHandler creates a new MCP handler from an MCP server.
func NewMCPHandler(mcpServer *mcp.Server, logger *zap.Logger) *MCPHandler {
	return &MCPHandler{
		httpServer: mcpServer.NewStreamableHTTPServer(),
		logger:     logger,
	}
}

// RegisterRoutes registers the MCP endpoint. Agents authenticate with an
// agent API key (X-Agent-Key) or a bearer JWT; either resolves to an
// engine role the tools scope their database access by.
func (h *MCPHandler) RegisterRoutes(mux *http.ServeMux, mcpAuthMiddleware *mcpauth.Middleware) {
	// Middleware layers, innermost first: JSON-RPC logging, then auth,
	// then the method check so non-POST traffic never reaches auth.
	loggedHandler := middleware.MCPRequestLogger(h.logger)(h.httpServer)
	authHandler := mcpAuthMiddleware.RequireAgent(loggedHandler)
	mux.Handle("/mcp", h.requirePOST(authHandler))
}

// requirePOST returns 405 Method Not Allowed for non-POST requests.
// MCP over HTTP streaming uses POST for JSON-RPC requests.
func (h *MCPHandler) requirePOST(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}
