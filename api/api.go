package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/memories/pkg/memory"
)

// Server is the API server for the memory service.
type Server struct {
	config  Config
	service *memory.Service
	logger  *slog.Logger
	app     *fiber.App
}

// NewServer creates a new API server over service.
func NewServer(config Config, service *memory.Service, logger *slog.Logger) (*Server, error) {
	if service == nil {
		return nil, errors.New("memory service is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	s := &Server{
		config:  config,
		service: service,
		logger:  logger,
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          s.handleFiberError,
	})

	s.app.Get("/ping", s.handlePing)

	v1 := s.app.Group("/v1")
	v1.Get("/status", s.handleStatus)
	v1.Post("/memories", s.handleCreate)
	v1.Get("/memories/search", s.handleSearch)
	v1.Get("/memories/:id", s.handleGet)
	v1.Post("/memories/:id/reinforce", s.handleReinforce)
	v1.Delete("/memories/:id", s.handleDelete)

	if config.MCPHandler != nil {
		s.app.All("/mcp", adaptor.HTTPHandler(config.MCPHandler))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
		"mcp", s.config.MCPHandler != nil,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server, waiting for in-flight
// requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
