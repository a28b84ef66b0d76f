// Package mcpserver exposes the read-only PiNotes tools over an MCP
// (Model Context Protocol) stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pinotes/pinotes/internal/index"
	"github.com/pinotes/pinotes/internal/note"
	"github.com/pinotes/pinotes/internal/vault"
	"github.com/pinotes/pinotes/internal/wikilink"
)

// Server wraps the MCP server with PiNotes tools. The vault is read-only,
// so no write tools are registered.
type Server struct {
	mcp       *server.MCPServer
	vault     *vault.Vault
	engine    *index.Engine
	backlinks *wikilink.Finder
}

// New creates a new MCP server with all tools registered.
func New(v *vault.Vault, engine *index.Engine, backlinks *wikilink.Finder) *Server {
	s := &Server{vault: v, engine: engine, backlinks: backlinks}

	s.mcp = server.NewMCPServer(
		"PiNotes",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through notes content and titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a Markdown note: parsed frontmatter and raw body."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("find_backlinks",
		mcp.WithDescription("Find all notes that contain a wikilink to the given filename stem."),
		mcp.WithString("stem", mcp.Required(), mcp.Description("Filename without extension (e.g. 'daily-log')")),
	), s.findBacklinks)

	s.mcp.AddTool(mcp.NewTool("refresh_index",
		mcp.WithDescription("Run one search index refresh cycle and report document count and duration."),
	), s.refreshIndex)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) searchNotes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results := s.engine.Search(query)
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := note.Read(s.vault, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(detail, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) findBacklinks(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stem, err := req.RequireString("stem")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	records, err := s.backlinks.Find(stem)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(records) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	out, _ := json.MarshalIndent(records, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) refreshIndex(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	count, elapsed, err := s.engine.Refresh()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("indexed %d notes in %.2fs", count, elapsed.Seconds())), nil
}
