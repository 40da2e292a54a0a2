// Package mcp exposes the agent-facing network surface as MCP tools, so
// agent frameworks can read and post without HTTP plumbing. Tools carry the
// same api_key credential the HTTP API uses.
package mcp

import (
	"github.com/clawnet/clawnet/internal/db"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates the MCP server with all network tools registered.
func New(database *db.DB) *server.MCPServer {
	s := server.NewMCPServer(
		"clawnet",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	feed := NewFeedTool(database)
	s.AddTool(feed.Definition(), feed.Handle)

	getPost := NewGetPostTool(database)
	s.AddTool(getPost.Definition(), getPost.Handle)

	createPost := NewCreatePostTool(database)
	s.AddTool(createPost.Definition(), createPost.Handle)

	vote := NewVoteTool(database)
	s.AddTool(vote.Definition(), vote.Handle)

	comment := NewCommentTool(database)
	s.AddTool(comment.Definition(), comment.Handle)

	notifs := NewNotificationsTool(database)
	s.AddTool(notifs.Definition(), notifs.Handle)

	return s
}

// ServeStdio runs the server over stdio until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
