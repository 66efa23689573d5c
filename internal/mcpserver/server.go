// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes egret tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/egret-dev/egret/internal/apperr"
	"github.com/egret-dev/egret/internal/projectservice"
)

// Server wraps the MCP server with egret tools.
type Server struct {
	mcp *server.MCPServer
	svc *projectservice.Service
}

// New creates a new MCP server with all egret tools registered.
func New(svc *projectservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"egret",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List all projects of the work directory with their logged time."),
	), s.listProjects)

	s.mcp.AddTool(mcp.NewTool("read_project",
		mcp.WithDescription("Read the raw text of a project file. The format is described "+
			"by the egret://file-format resource or the get_file_contract tool."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Project name")),
	), s.readProject)

	s.mcp.AddTool(mcp.NewTool("annotate_project",
		mcp.WithDescription("Run one annotation pass on a project: resolve log shorthand "+
			"commands into dated entries, synchronize task placeholders with the task "+
			"store, and refresh duration totals. Rewrites the project file."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Project name")),
	), s.annotateProject)

	s.mcp.AddTool(mcp.NewTool("project_totals",
		mcp.WithDescription("Report the logged minutes of a project, total and per tag."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Project name")),
	), s.projectTotals)

	s.mcp.AddTool(mcp.NewTool("archive_project",
		mcp.WithDescription("Move log entries of complete months before a cutoff date into "+
			"monthly archive files."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString("cutoff", mcp.Required(), mcp.Description("Cutoff date, YYYY-MM-DD")),
	), s.archiveProject)

	s.mcp.AddTool(mcp.NewTool("get_file_contract",
		mcp.WithDescription("Returns the egret project file format. Call this before "+
			"editing project files to ensure correct structure."),
	), s.getFileContract)

	// Resource: project file format.
	s.mcp.AddResource(
		mcp.NewResource("egret://file-format", "Project File Format",
			mcp.WithResourceDescription("Plain-text project file format all .egret files follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFileFormatResource,
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

func (s *Server) listProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.ListProjects(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, _, err := s.svc.ReadRaw(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", name)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) annotateProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.Annotate(ctx, name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", name)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(detail.Content), nil
}

func (s *Server) projectTotals(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	totals, err := s.svc.Totals(ctx, name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", name)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(totals, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) archiveProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cutoffStr, err := req.RequireString("cutoff")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cutoff, err := time.ParseInLocation("2006-01-02", cutoffStr, time.Local)
	if err != nil {
		return mcp.NewToolResultError("cutoff must be a YYYY-MM-DD date"), nil
	}
	results, err := s.svc.Archive(ctx, name, cutoff)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", name)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getFileContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(FileFormatContract), nil
}

func (s *Server) readFileFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "egret://file-format",
			MIMEType: "text/markdown",
			Text:     FileFormatContract,
		},
	}, nil
}
