// Package mcp provides an MCP (Model Context Protocol) server exposing
// memex recall, contradiction scans, and timeline audits as tools.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nickyai/memex/pkg/contradiction"
	"github.com/nickyai/memex/pkg/retrieval"
	"github.com/nickyai/memex/pkg/timeline"
	"github.com/nickyai/memex/pkg/utils"
)

type Config struct {
	// Ranker runs recalls for the memory_recall tool
	Ranker *retrieval.Ranker

	// Engine runs scans for the contradiction_scan tool
	Engine *contradiction.Engine

	// Auditor runs audits for the timeline_audit tool
	Auditor *timeline.Auditor

	// Noop for empty MCP server
	Noop bool

	// Logger is the configured slog logger
	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the memory tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "memex",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if c.Noop {
		// return the empty MCP server with no tools configured
		// if the noop flag is set (i.e., MCP capabilities are disabled)
		s.mcpServer = mcpServer
		return s, nil
	}

	if c.Ranker == nil {
		return nil, errors.New("ranker is required")
	}
	if c.Engine == nil {
		return nil, errors.New("contradiction engine is required")
	}
	if c.Auditor == nil {
		return nil, errors.New("timeline auditor is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        recallToolName,
		Description: recallDescription,
	}, s.handleRecall)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        scanToolName,
		Description: scanDescription,
	}, s.handleScan)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        auditToolName,
		Description: auditDescription,
	}, s.handleAudit)

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// toolError wraps a failure message in an error tool result.
func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}

// toolResult wraps serialized JSON output in a text content block.
// Per MCP spec: tools returning structured content should also return
// serialized JSON in a TextContent block for backwards compatibility.
func toolResult(jsonText string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: jsonText},
		},
	}
}
