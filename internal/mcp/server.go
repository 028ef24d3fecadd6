// Package mcp exposes the loaded archive to MCP clients over stdio.
package mcp

import (
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/zipsite/internal/session"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Options configure how the load_archive tool reads sources.
type Options struct {
	MaxArchiveBytes int64
	RemoteTimeout   time.Duration
}

// Server wraps an MCP server that inspects the current session.
type Server struct {
	manager *session.Manager
	opts    Options
	client  *http.Client
	mcp     *server.MCPServer
}

// NewServer creates a new MCP server over manager.
func NewServer(manager *session.Manager, opts Options) *Server {
	s := &Server{
		manager: manager,
		opts:    opts,
		client:  &http.Client{Timeout: opts.RemoteTimeout},
	}

	s.mcp = server.NewMCPServer(
		"zipsite",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(loadArchiveTool, s.handleLoadArchive)
	s.mcp.AddTool(sessionStatusTool, s.handleSessionStatus)
	s.mcp.AddTool(listResourcesTool, s.handleListResources)
	s.mcp.AddTool(resolveReferenceTool, s.handleResolveReference)
	s.mcp.AddTool(readResourceTool, s.handleReadResource)
	s.mcp.AddTool(followLinkTool, s.handleFollowLink)
	s.mcp.AddTool(fetchReferenceTool, s.handleFetchReference)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
