// Package api exposes the REST surface of the cohort outreach server.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cohort-outreach-mcp-server/internal/config"
	"github.com/cohort-outreach-mcp-server/internal/database"
	"github.com/cohort-outreach-mcp-server/internal/middleware"
	"github.com/cohort-outreach-mcp-server/internal/notify"
	"github.com/cohort-outreach-mcp-server/internal/outreachlog"
	"github.com/cohort-outreach-mcp-server/internal/patients"
	"github.com/cohort-outreach-mcp-server/internal/service"
)

// Deps bundles the collaborators the REST server exposes.
type Deps struct {
	Classifier  *service.ClassifierService
	Store       patients.Store
	Dispatcher  *notify.Dispatcher
	Portal      *notify.PortalHub
	OutreachLog *outreachlog.PostgresStore
	DB          *database.DB
}

// Server represents the HTTP server
type Server struct {
	cfg    *config.Config
	log    *logrus.Logger
	deps   Deps
	router *gin.Engine
	server *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *config.Config, logger *logrus.Logger, deps Deps) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.CORS())

	server := &Server{
		cfg:    cfg,
		log:    logger,
		deps:   deps,
		router: router,
	}

	server.setupRoutes()

	return server
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.log.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws/portal", s.handlePortalUpgrade)

	requestTimeout := s.cfg.Server.WriteTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	// The portal websocket stays outside the timeout group; everything else
	// gets a bounded request context.
	v1 := s.router.Group("/api/v1")
	v1.Use(middleware.RequestTimeout(requestTimeout))
	{
		v1.POST("/classify", s.handleClassify)

		v1.GET("/patients", s.handleListPatients)
		v1.GET("/patients/unmet", s.handleUnmetPatients)
		v1.GET("/patients/:id", s.handleGetPatient)
		v1.GET("/patients/:id/outreach", s.handlePatientOutreach)

		v1.GET("/cohorts", s.handleListCohorts)
		v1.GET("/cohorts/summary", s.handleCohortSummary)
		v1.GET("/cohorts/:name", s.handleGetCohort)

		v1.POST("/reminders", s.handleFireReminder)
	}
}
