// Package api exposes the engine over HTTP: authentication, autonomous
// engine control, the SSE event stream, and read-only portfolio views.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/coinquorum/tradeengine/internal/api/ssetoken"
	"github.com/coinquorum/tradeengine/internal/auth"
	"github.com/coinquorum/tradeengine/internal/config"
	"github.com/coinquorum/tradeengine/internal/db"
	"github.com/coinquorum/tradeengine/internal/engine"
	"github.com/coinquorum/tradeengine/internal/events"
)

// Server is the process's single HTTP entrypoint: gin router plus the
// collaborators each handler group needs.
type Server struct {
	router *gin.Engine
	server *http.Server

	db         *db.DB
	auth       *auth.Service
	controller *engine.Controller
	bus        *events.Bus
	tokens     *ssetoken.Registry
	cfg        config.APIConfig

	logger zerolog.Logger
}

// Deps bundles every collaborator the API surface is wired against.
type Deps struct {
	DB         *db.DB
	Auth       *auth.Service
	Controller *engine.Controller
	Bus        *events.Bus
	Tokens     *ssetoken.Registry
	Config     config.APIConfig
}

// NewServer builds the gin router and registers every route group.
func NewServer(deps Deps, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware())
	router.Use(corsMiddleware())

	s := &Server{
		router:     router,
		db:         deps.DB,
		auth:       deps.Auth,
		controller: deps.Controller,
		bus:        deps.Bus,
		tokens:     deps.Tokens,
		cfg:        deps.Config,
		logger:     logger.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()
	return s
}

// Router exposes the underlying gin.Engine for tests that drive requests
// through httptest without binding a real listener.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start begins serving; blocks until Stop is called or a fatal listen error occurs.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the SSE stream holds the connection open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", s.server.Addr).Msg("starting api server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("start api server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info().Msg("stopping api server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("stop api server: %w", err)
	}
	return nil
}
