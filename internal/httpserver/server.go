// Package httpserver wires the Query Endpoints component onto an echo
// HTTP surface, per spec.md §6.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"knowledgeforge/internal/config"
	"knowledgeforge/internal/query"
	"knowledgeforge/internal/ratelimit"
)

const shutdownTimeout = 10 * time.Second

// HealthChecker reports whether the backing stores are reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server is the query service's HTTP surface.
type Server struct {
	echo     *echo.Echo
	service  *query.Service
	registry *ratelimit.Registry
	limiter  *ratelimit.Limiter
	tiers    config.RateLimitTiers
	health   HealthChecker
	log      zerolog.Logger
}

// New builds a Server wired to service, and registers its routes.
func New(service *query.Service, registry *ratelimit.Registry, tiers config.RateLimitTiers, health HealthChecker, log zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = newErrorHandler(log)

	s := &Server{
		echo:     e,
		service:  service,
		registry: registry,
		limiter:  ratelimit.NewLimiter(),
		tiers:    tiers,
		health:   health,
		log:      log,
	}
	s.registerRoutes()
	return s
}

// Handler exposes the underlying echo instance as an http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start runs the HTTP server, blocking until it stops or ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			s.log.Error().Err(err).Msg("httpserver: shutdown failed")
		}
	}()
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.echo.Use(s.authMiddleware, s.rateLimitMiddleware)

	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/search_knowledge", s.handleSearchKnowledge)
	s.echo.GET("/get_decisions", s.handleGetDecisions)
	s.echo.GET("/get_patterns", s.handleGetPatterns)
	s.echo.GET("/get_warnings", s.handleGetWarnings)
	s.echo.GET("/get_methodologies", s.handleGetMethodologies, s.requireTier(ratelimit.TierRegistered))
}
