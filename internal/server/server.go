// Package server exposes the journaling core over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raphaelgruber/memcapsule/internal/capsule"
	"github.com/raphaelgruber/memcapsule/internal/metrics"
	"github.com/raphaelgruber/memcapsule/internal/models"
	"github.com/raphaelgruber/memcapsule/internal/service"
)

// Journal creates entries from requests. *service.JournalService implements it.
type Journal interface {
	Create(ctx context.Context, req service.EntryRequest) (service.CreateResult, error)
}

// Capsule is the read and maintenance side of the core. *capsule.Store implements it.
type Capsule interface {
	Flashback(ctx context.Context, userID, query string, k int) ([]models.Flashback, error)
	Stats(ctx context.Context, userID string) (models.Stats, error)
	Rebuild(ctx context.Context, userID string) (int, error)
	MaxK() int
}

var _ Capsule = (*capsule.Store)(nil)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	// Code names the error kind, see models.ErrorCode.
	Code string `json:"code"`
}

// Server wraps the gin engine with dependencies and lifecycle management.
type Server struct {
	engine  *gin.Engine
	journal Journal
	capsule Capsule
	metrics *metrics.Collector
	logger  *slog.Logger
	version string
}

// New creates a server and registers its routes.
func New(journal Journal, store Capsule, collector *metrics.Collector, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:  gin.New(),
		journal: journal,
		capsule: store,
		metrics: collector,
		logger:  logger,
		version: version,
	}
	s.engine.Use(gin.Recovery(), RequestID(), LoggingMiddleware(logger))
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine
	r.POST("/entry", s.handleCreateEntry)
	r.GET("/flashback/:user_id", s.handleFlashback)
	r.GET("/stats/:user_id", s.handleStats)
	r.GET("/questions", s.handleQuestions)
	r.POST("/admin/rebuild/:user_id", s.handleRebuild)

	r.GET("/health", s.handleHealth)
	r.GET("/usage", s.handleUsage)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr, "version", s.version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleCreateEntry(c *gin.Context) {
	var req service.EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error(), Code: models.ErrorCode(models.ErrValidation)})
		return
	}

	res, err := s.journal.Create(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}

	outcome := "ok"
	if res.Warning != "" {
		outcome = "partial"
		s.logger.Warn("entry saved with warning", "user_id", req.UserID, "entry_id", res.EntryID, "warning", res.Warning)
	}
	entriesSaved.WithLabelValues(req.Mode, outcome).Inc()
	if res.BadgeAwarded != "" {
		badgesAwarded.WithLabelValues(res.BadgeAwarded).Inc()
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleFlashback(c *gin.Context) {
	k := capsule.DefaultFlashbackK
	if raw := c.Query("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "k must be an integer", Code: models.ErrorCode(models.ErrValidation)})
			return
		}
		k = n
	}

	hits, err := s.capsule.Flashback(c.Request.Context(), c.Param("user_id"), c.Query("q"), k)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, hits)
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.capsule.Stats(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleQuestions(c *gin.Context) {
	c.JSON(http.StatusOK, service.Questions)
}

func (s *Server) handleRebuild(c *gin.Context) {
	n, err := s.capsule.Rebuild(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": n})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.version})
}

func (s *Server) handleUsage(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.Snapshot())
}

// fail writes the error response for err and attaches err to the context
// for the logging middleware.
func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(StatusFor(err), ErrorResponse{Error: err.Error(), Code: models.ErrorCode(err)})
}

// StatusFor maps core errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDimensionMismatch), errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
