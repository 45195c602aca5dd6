package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"sentinel-worker-go/internal/api/handlers"
	"sentinel-worker-go/internal/api/ws"
	"sentinel-worker-go/internal/config"
	"sentinel-worker-go/internal/dispatch"
	"sentinel-worker-go/internal/directive"
	"sentinel-worker-go/internal/supervisor"
)

// Server wraps the gin engine and the http.Server it drives.
type Server struct {
	config *config.Config
	router *gin.Engine
	server *http.Server
	log    zerolog.Logger

	healthHandler    *handlers.HealthHandler
	cameraHandler    *handlers.CameraHandler
	directiveHandler *handlers.DirectiveHandler
	alertHandler     *handlers.AlertHandler
	wsHandler        *ws.Handler
}

// Deps bundles the collaborators Server needs to wire its handlers.
type Deps struct {
	Registry   *directive.Registry
	Supervisor *supervisor.Supervisor
	Dispatcher *dispatch.Dispatcher
	Hubs       *ws.Hubs
}

// NewServer builds a Server and its handler set.
func NewServer(cfg *config.Config, d Deps, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	return &Server{
		config:           cfg,
		router:           router,
		log:              log,
		healthHandler:    handlers.NewHealthHandler(cfg),
		cameraHandler:    handlers.NewCameraHandler(d.Supervisor),
		directiveHandler: handlers.NewDirectiveHandler(d.Registry, d.Supervisor, d.Supervisor.KnownCameraIDs),
		alertHandler:     handlers.NewAlertHandler(d.Dispatcher),
		wsHandler:        ws.NewHandler(d.Hubs, d.Dispatcher, log),
	}
}

// Setup wires middleware and routes and prepares the underlying http.Server.
func (s *Server) Setup() error {
	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.router,
	}

	return nil
}

// Start blocks serving HTTP until the server is stopped or fails.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.config.Port).Msg("starting API server")
	return s.server.ListenAndServe()
}

// Stop gracefully shuts the server down within the configured timeout.
func (s *Server) Stop() error {
	s.log.Info().Msg("stopping API server")
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}
