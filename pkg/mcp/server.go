package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	keep "github.com/unowned-ai/keep/pkg"
)

type KeepMCPServer struct {
	mcpServer *server.MCPServer
	stores    *keep.Stores
}

// NewKeepMCPServer builds an MCP server with every keep tool registered.
func NewKeepMCPServer(svc *keep.Stores) *KeepMCPServer {
	s := server.NewMCPServer(
		"Keep MCP Server",
		keep.Version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
		server.WithRecovery(),
	)
	RegisterAllTools(s, svc)
	return &KeepMCPServer{mcpServer: s, stores: svc}
}

// RegisterAllTools registers the item, tag and project tools on s.
func RegisterAllTools(s *server.MCPServer, svc *keep.Stores) {
	RegisterPingTool(s)

	RegisterCreateItemTool(s, svc)
	RegisterGetItemTool(s, svc)
	RegisterListItemsTool(s, svc)
	RegisterUpdateItemTool(s, svc)
	RegisterArchiveItemTool(s, svc)
	RegisterDeleteItemTool(s, svc)
	RegisterPurgeArchivedTool(s, svc)

	RegisterCreateTagTool(s, svc)
	RegisterListTagsTool(s, svc)
	RegisterDeleteTagTool(s, svc)
	RegisterTagItemTool(s, svc)
	RegisterUntagItemTool(s, svc)
	RegisterTaggedTool(s, svc)
	RegisterMatchTagsTool(s, svc)

	RegisterCreateProjectTool(s, svc)
	RegisterListProjectsTool(s, svc)
	RegisterUpdateProjectTool(s, svc)
	RegisterDeleteProjectTool(s, svc)
	RegisterAddToProjectTool(s, svc)
	RegisterRemoveFromProjectTool(s, svc)
	RegisterProjectItemsTool(s, svc)
}

// Start runs the stdio event loop.
func (s *KeepMCPServer) Start() error {
	return server.ServeStdio(s.mcpServer)
}

// Stores returns the stores the tools operate on.
func (s *KeepMCPServer) Stores() *keep.Stores {
	return s.stores
}

// MCPRawServer exposes the raw mcp-go server (useful for additional configuration).
func (s *KeepMCPServer) MCPRawServer() *server.MCPServer {
	return s.mcpServer
}
