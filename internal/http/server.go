// Package http provides the HTTP server, router and shared middleware.
package http

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/KB1RD/matrix-widget-api/internal/config"
	"github.com/KB1RD/matrix-widget-api/internal/metrics"
	widgetHTTP "github.com/KB1RD/matrix-widget-api/internal/widget/http"
)

const (
	defaultWriteTimeout = 15 * time.Second
	readinessTimeout    = 2 * time.Second
)

// Server represents the HTTP server
type Server struct {
	db     *sql.DB
	server *http.Server
	router *gin.Engine
	logger *slog.Logger
}

// NewServer creates a new HTTP server. db may be nil, in which case the
// readiness check always fails.
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: defaultWriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter registers middleware and routes. ctx bounds background work
// started by middleware, such as rate limiter cleanup.
func (s *Server) SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	widgetHandler *widgetHTTP.WidgetHandler,
	sessionHandler *widgetHTTP.SessionHandler,
	promptHandler *widgetHTTP.PromptHandler,
	auditLogHandler *widgetHTTP.AuditLogHandler,
	metricsProvider *metrics.Provider,
) {
	gin.SetMode(cfg.GetGinMode())

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(widgetHTTP.RequestContextMiddleware())
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")

	// Widget routes act for the room, user and origin of the bearer session
	widgets := v1.Group("/widgets/:widget_id")
	widgets.Use(sessionHandler.RequireSession())
	if cfg.RateLimitEnabled {
		widgets.Use(widgetHTTP.RateLimitMiddleware(ctx, cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, s.logger))
	}
	widgets.POST("/capabilities", widgetHandler.CapabilitiesHandler)
	widgets.POST("/events", widgetHandler.SendEventHandler)
	widgets.GET("/openid", widgetHandler.OpenIDHandler)

	// Host UI routes; widget session tokens are not accepted here
	host := v1.Group("")
	host.Use(widgetHTTP.HostAuthenticationMiddleware(cfg.HostAPIToken, s.logger))
	host.POST("/sessions", sessionHandler.OpenHandler)
	host.DELETE("/sessions/:session_id", sessionHandler.CloseHandler)
	host.GET("/prompts", promptHandler.ListHandler)
	host.POST("/prompts/:prompt_id/resolve", promptHandler.ResolveHandler)
	host.GET("/audit-logs", auditLogHandler.ListHandler)

	// An OpenID stream stays open while the user is prompted
	if streamWindow := cfg.OpenIDPromptTimeout + defaultWriteTimeout; streamWindow > s.server.WriteTimeout {
		s.server.WriteTimeout = streamWindow
	}

	s.router = router
}

// healthHandler reports that the process is up.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports whether the database is reachable.
func (s *Server) readinessHandler(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": gin.H{"database": "error"},
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Warn("readiness check failed", slog.Any("error", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": gin.H{"database": "error"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": gin.H{"database": "ok"},
	})
}

// Start starts the HTTP server. SetupRouter must be called first.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return fmt.Errorf("router not configured")
	}
	s.server.Handler = s.router

	return listenAndServe(s.server, s.logger, "http server")
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

// listenAndServe binds first so the logged address carries the real port,
// then serves until the server is shut down.
func listenAndServe(srv *http.Server, logger *slog.Logger, name string) error {
	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen for %s: %w", name, err)
	}

	logger.Info("starting "+name, slog.String("addr", listener.Addr().String()))

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s stopped: %w", name, err)
	}
	return nil
}
