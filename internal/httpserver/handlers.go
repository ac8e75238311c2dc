package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"knowledgeforge/internal/apperr"
	"knowledgeforge/internal/models"
)

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (s *Server) handleSearchKnowledge(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(apperr.CodeValidation, "malformed request body")
	}
	if req.Limit == 0 {
		req.Limit = 10
	}
	resp, err := s.service.SemanticSearch(c.Request().Context(), req.Query, req.Limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetDecisions(c echo.Context) error {
	return s.handleCategoryListing(c, models.CategoryDecision)
}

func (s *Server) handleGetPatterns(c echo.Context) error {
	return s.handleCategoryListing(c, models.CategoryPattern)
}

func (s *Server) handleGetWarnings(c echo.Context) error {
	return s.handleCategoryListing(c, models.CategoryWarning)
}

func (s *Server) handleGetMethodologies(c echo.Context) error {
	return s.handleCategoryListing(c, models.CategoryMethodology)
}

func (s *Server) handleCategoryListing(c echo.Context, category models.Category) error {
	topic := c.QueryParam("topic")
	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return apperr.New(apperr.CodeValidation, "limit must be an integer")
		}
		limit = parsed
	}

	resp, err := s.service.GetCategory(c.Request().Context(), category, topic, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.health.HealthCheck(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}
