package api

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/memories/pkg/memory"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStatus reports the storage backend, 503 when it does not answer.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	status := s.service.Status(c.UserContext())
	if !status.Healthy() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(status)
	}
	return c.JSON(status)
}

func (s *Server) handleCreate(c *fiber.Ctx) error {
	var req memory.CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.Content) == "" {
		return badRequest(c, "content is required")
	}

	resp, err := s.service.Create(c.UserContext(), req)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	req, err := parseSearchRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	resp, err := s.service.Search(c.UserContext(), req)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(resp)
}

func (s *Server) handleGet(c *fiber.Ctx) error {
	resp, err := s.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(resp)
}

func (s *Server) handleReinforce(c *fiber.Ctx) error {
	resp, err := s.service.Reinforce(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(resp)
}

func (s *Server) handleDelete(c *fiber.Ctx) error {
	resp, err := s.service.Delete(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(resp)
}

// parseSearchRequest reads the search query string. Absent tag parameters
// mean no constraint.
func parseSearchRequest(c *fiber.Ctx) (memory.SearchRequest, error) {
	req := memory.SearchRequest{
		Query:       c.Query("query"),
		Agent:       c.Query("agent"),
		Personality: c.Query("personality"),
		Project:     c.Query("project"),
		Type:        c.Query("type"),
	}
	if strings.TrimSpace(req.Query) == "" {
		return req, errors.New("query parameter is required")
	}

	if raw := c.Query("global"); raw != "" {
		global, err := strconv.ParseBool(raw)
		if err != nil {
			return req, errors.New("global must be true or false")
		}
		req.Global = &global
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return req, errors.New("limit must be a positive integer")
		}
		req.Limit = limit
	}

	if raw := c.Query("min_confidence"); raw != "" {
		floor, err := strconv.ParseFloat(raw, 64)
		if err != nil || floor < 0 || floor > 1 {
			return req, errors.New("min_confidence must be between 0 and 1")
		}
		req.MinConfidence = &floor
	}

	return req, nil
}

// writeError maps a service error onto a status code.
func (s *Server) writeError(c *fiber.Ctx, err error) error {
	switch memory.KindOf(err) {
	case memory.KindNotFound:
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: err.Error()})
	case memory.KindInvalidOperation:
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: err.Error()})
	case memory.KindInvalidRequest:
		return badRequest(c, err.Error())
	}

	s.logger.Error("storage backend unavailable",
		"method", c.Method(),
		"path", c.Path(),
		"error", err,
	)
	return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "storage backend unavailable"})
}

// handleFiberError renders routing errors, such as unknown paths, in the
// same shape as handler errors.
func (s *Server) handleFiberError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg})
}
