// Package api exposes the optional status HTTP surface: health, run state
// and recent leads.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/goleads/internal/domain"
	"github.com/jonesrussell/goleads/internal/logger"
)

const (
	defaultLeadLimit = 20
	maxLeadLimit     = 200

	readHeaderTimeout = 10 * time.Second
)

// StatusProvider reports the run loop's current state.
type StatusProvider interface {
	Status() domain.RunStatus
}

// LeadLister lists recently created leads.
type LeadLister interface {
	Recent(ctx context.Context, limit int) ([]domain.Lead, error)
}

// Config holds status server configuration.
type Config struct {
	Address string
}

// Server is the status HTTP server.
type Server struct {
	cfg    Config
	logger logger.Logger
	srv    *http.Server
}

// NewServer creates the status server and its routes.
func NewServer(cfg Config, status StatusProvider, leads LeadLister, log logger.Logger) *Server {
	engine := NewRouter(status, leads)

	return &Server{
		cfg:    cfg,
		logger: log,
		srv: &http.Server{
			Addr:              cfg.Address,
			Handler:           engine,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}
}

// NewRouter builds the gin engine with all routes. Split out so tests can
// exercise the handlers without binding a listener.
func NewRouter(status StatusProvider, leads LeadLister) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, status.Status())
	})

	engine.GET("/api/v1/leads", func(c *gin.Context) {
		limit := defaultLeadLimit
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = min(parsed, maxLeadLimit)
		}

		recent, err := leads.Recent(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list leads"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"leads": recent, "count": len(recent)})
	})

	return engine
}

// Start runs the server until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("status server listening", logger.String("addr", s.cfg.Address))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
