// Package mcp provides an MCP (Model Context Protocol) server exposing the
// memory operations as tools.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/memories/pkg/memory"
	"github.com/papercomputeco/memories/pkg/utils"
)

type Config struct {
	// Service runs the memory operations behind every tool
	Service *memory.Service

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
			Name:    "memories",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.Service == nil {
			return nil, errors.New("memory service is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		s.addTools(mcpServer)
	}

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

func (s *Server) addTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        createToolName,
		Description: createDescription,
	}, s.handleCreate)

	mcp.AddTool(server, &mcp.Tool{
		Name:        searchToolName,
		Description: searchDescription,
	}, s.handleSearch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        getToolName,
		Description: getDescription,
	}, s.handleGet)

	mcp.AddTool(server, &mcp.Tool{
		Name:        reinforceToolName,
		Description: reinforceDescription,
	}, s.handleReinforce)

	mcp.AddTool(server, &mcp.Tool{
		Name:        deleteToolName,
		Description: deleteDescription,
	}, s.handleDelete)

	mcp.AddTool(server, &mcp.Tool{
		Name:        statusToolName,
		Description: statusDescription,
	}, s.handleStatus)
}
