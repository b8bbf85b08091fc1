// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes vault tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/mdnotebook/internal/export"
	"github.com/starford/mdnotebook/internal/recent"
	"github.com/starford/mdnotebook/internal/storage"
)

// VaultLister lists recently opened vaults.
type VaultLister interface {
	List(limit int) ([]recent.Vault, error)
}

// Server wraps the MCP server with vault tools.
type Server struct {
	mcp    *server.MCPServer
	store  *storage.Store
	vaults VaultLister
}

// New creates a new MCP server with all vault tools registered.
func New(store *storage.Store, vaults VaultLister, version string) *Server {
	s := &Server{store: store, vaults: vaults}

	s.mcp = server.NewMCPServer(
		"MDNotebook",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("vault_exists",
		mcp.WithDescription("Report whether a folder already holds a vault (vault.json)."),
		mcp.WithString("folder", mcp.Required(), mcp.Description("Absolute path of the vault folder")),
	), s.vaultExists)

	s.mcp.AddTool(mcp.NewTool("read_vault",
		mcp.WithDescription("Read the raw vault.json document of a vault. "+
			"The document is produced by the notebook UI and may be encrypted."),
		mcp.WithString("folder", mcp.Required(), mcp.Description("Absolute path of the vault folder")),
	), s.readVault)

	s.mcp.AddTool(mcp.NewTool("list_assets",
		mcp.WithDescription("List the asset ids stored in a vault's vault-assets directory."),
		mcp.WithString("folder", mcp.Required(), mcp.Description("Absolute path of the vault folder")),
	), s.listAssets)

	s.mcp.AddTool(mcp.NewTool("read_markdown",
		mcp.WithDescription("Read a .md, .markdown or .txt file from disk."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the file")),
	), s.readMarkdown)

	s.mcp.AddTool(mcp.NewTool("export_notes",
		mcp.WithDescription("Write notes as Markdown files into an existing folder. "+
			"Names are sanitized and never overwrite existing files; see the mdnotebook://vault-layout resource."),
		mcp.WithString("folder", mcp.Required(), mcp.Description("Destination folder (must exist)")),
		mcp.WithArray("notes", mcp.Required(),
			mcp.Description("Notes to export, in order"),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":    map[string]any{"type": "string"},
					"content": map[string]any{"type": "string"},
				},
				"required": []string{"name", "content"},
			}),
		),
	), s.exportNotes)

	s.mcp.AddTool(mcp.NewTool("recent_vaults",
		mcp.WithDescription("List recently opened vault folders, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of vaults (default 10)")),
	), s.recentVaults)

	// Resource: vault layout.
	s.mcp.AddResource(
		mcp.NewResource(LayoutURI, "Vault Layout",
			mcp.WithResourceDescription("How a vault folder is laid out and how exports are named."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLayoutResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) vaultExists(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder, err := req.RequireString("folder")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ok, err := s.store.VaultExists(folder)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%t", ok)), nil
}

func (s *Server) readVault(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder, err := req.RequireString("folder")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, ok, err := s.store.ReadVault(folder)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no vault.json in %s", folder)), nil
	}
	return mcp.NewToolResultText(data), nil
}

func (s *Server) listAssets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder, err := req.RequireString("folder")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ids, err := s.store.ListAssets(folder)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(ids) == 0 {
		return mcp.NewToolResultText("no assets found"), nil
	}
	return mcp.NewToolResultText(strings.Join(ids, "\n")), nil
}

func (s *Server) readMarkdown(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := s.store.ReadMarkdown(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) exportNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder, err := req.RequireString("folder")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, ok := req.GetArguments()["notes"]
	if !ok {
		return mcp.NewToolResultError(`required argument "notes" not found`), nil
	}
	// Arguments arrive as generic JSON values.
	buf, err := json.Marshal(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var notes []export.Note
	if err := json.Unmarshal(buf, &notes); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("notes: %v", err)), nil
	}
	if err := export.ToFolder(folder, notes); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("exported %d notes to %s", len(notes), folder)), nil
}

func (s *Server) recentVaults(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", recent.DefaultLimit)
	vaults, err := s.vaults.List(limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := json.MarshalIndent(vaults, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode recent vaults: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readLayoutResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      LayoutURI,
			MIMEType: "text/markdown",
			Text:     VaultLayout,
		},
	}, nil
}
