// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes gridcat catalog tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/gridcat/internal/collection"
	"github.com/starford/gridcat/internal/collectionservice"
)

const formatURI = "gridcat://index-format"

// Server wraps the MCP server with gridcat tools.
type Server struct {
	mcp *server.MCPServer
	svc *collectionservice.Service
}

// New creates a new MCP server with all gridcat tools registered.
func New(svc *collectionservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"gridcat",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_collections",
		mcp.WithDescription("List the configured GRIB collections with their roots and update policies."),
	), s.listCollections)

	s.mcp.AddTool(mcp.NewTool("is_partition",
		mcp.WithDescription("Report whether an index file describes a partition or a leaf collection."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path of a .gcx index file")),
	), s.isPartition)

	s.mcp.AddTool(mcp.NewTool("read_children",
		mcp.WithDescription("List the children of a partition index with their recorded modification times."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path of a partition .gcx index file")),
	), s.readChildren)

	s.mcp.AddTool(mcp.NewTool("read_mfiles",
		mcp.WithDescription("List the data files recorded in a leaf index."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path of a leaf .gcx index file")),
	), s.readMFiles)

	s.mcp.AddTool(mcp.NewTool("update_collection",
		mcp.WithDescription("Bring a configured collection's indexes up to date. "+
			"Policies default to the collection's configuration. Read "+formatURI+" for what they mean."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Collection name")),
		mcp.WithString("collection", mcp.Description("Policy for the top node: always, test, nocheck or never")),
		mcp.WithString("children", mcp.Description("Policy for descendants: always, test, nocheck or never")),
	), s.updateCollection)

	s.mcp.AddTool(mcp.NewTool("list_nodes",
		mcp.WithDescription("List the recorded state of every catalog node, optionally for one collection."),
		mcp.WithString("collection", mcp.Description("Optional collection name")),
	), s.listNodes)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Index Format",
			mcp.WithResourceDescription("On-disk layout of gridcat index files and the update policies."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio serves the MCP protocol on stdin/stdout until ctx is cancelled
// or the client closes its end.
func (s *Server) ServeStdio(ctx context.Context) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listCollections(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Collections(ctx))
}

func (s *Server) isPartition(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := s.svc.IndexKind(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"path": path, "kind": kind, "partition": kind == "partition"})
}

func (s *Server) readChildren(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kids, err := s.svc.Children(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(kids)
}

func (s *Server) readMFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	files, err := s.svc.MFiles(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(files)
}

func (s *Server) updateCollection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var self, children collection.Policy
	if v := req.GetString("collection", ""); v != "" {
		if self, err = collection.ParsePolicy(v); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if v := req.GetString("children", ""); v != "" {
		if children, err = collection.ParsePolicy(v); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	res, err := s.svc.UpdateCollection(ctx, name, self, children)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) listNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodes, err := s.svc.Nodes(ctx, req.GetString("collection", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(nodes)
}

func (s *Server) readFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     IndexFormatContract,
		},
	}, nil
}
