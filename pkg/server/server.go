// Package server exposes the session lifecycle and action dispatcher over
// HTTP. The boundary is thin: it parses requests, calls the core, and maps
// the core's error taxonomy onto stable status codes.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/entrhq/sessiond/pkg/action"
	"github.com/entrhq/sessiond/pkg/logging"
	"github.com/entrhq/sessiond/pkg/session"
)

// Server wires the HTTP routes to the session core.
type Server struct {
	manager    *session.Manager
	dispatcher *action.Dispatcher
	logger     *logging.Logger
	httpServer *http.Server
}

// New creates a server over a lifecycle manager and dispatcher.
func New(manager *session.Manager, dispatcher *action.Dispatcher, logger *logging.Logger) *Server {
	if logger == nil {
		logger, _ = logging.NewLogger("server")
	}

	return &Server{
		manager:    manager,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLog())

	router.POST("/create-session", s.createSession)
	router.POST("/confirm-login/:user_id/:site_name", s.confirmLogin)
	router.POST("/execute-action", s.executeAction)
	router.GET("/sessions", s.listSessions)
	router.DELETE("/sessions/:user_id/:site_name", s.deleteSession)
	router.GET("/health", s.health)

	return router
}

// Run serves HTTP on addr until Shutdown is called.
func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	s.logger.Infof("listening on %s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
