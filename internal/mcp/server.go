package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/faucetdb/rolekeeper/internal/config"
	"github.com/faucetdb/rolekeeper/internal/service"
)

// MCPServer exposes admin role management as MCP tools and resources. Every
// call runs as a single configured admin: reads need an active account and
// edits need an active SuperAdmin, the same rules the HTTP API applies.
type MCPServer struct {
	store   *config.Store
	edits   *service.EditService
	actorID int64
	logger  *slog.Logger
	server  *server.MCPServer
}

// NewMCPServer creates an MCPServer acting as actorID, with all tools and
// resources registered.
func NewMCPServer(store *config.Store, edits *service.EditService, actorID int64, version string, logger *slog.Logger) *MCPServer {
	if version == "" {
		version = "dev"
	}
	s := &MCPServer{
		store:   store,
		edits:   edits,
		actorID: actorID,
		logger:  logger,
	}

	mcpServer := server.NewMCPServer(
		"Rolekeeper Admin Roles",
		version,
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go server.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio serves MCP over stdin/stdout until the client disconnects.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode", "actor_id", s.actorID)
	return server.ServeStdio(s.server)
}

// ServeHTTP serves MCP in Streamable HTTP mode on addr (e.g. ":3001").
func (s *MCPServer) ServeHTTP(addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.server)
	s.logger.Info("MCP HTTP server starting", "addr", addr, "actor_id", s.actorID)
	return httpServer.Start(addr)
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(true),
	}
}

func mutatingAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint:    boolPtr(false),
		DestructiveHint: boolPtr(false),
		IdempotentHint:  boolPtr(false),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
