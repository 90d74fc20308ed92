package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ktripathi/cloudopt/internal/simulator"
)

// Runner triggers one full optimization pipeline run
type Runner interface {
	Run(ctx context.Context) (simulator.Result, error)
}

// Server represents the API server
type Server struct {
	router     *gin.Engine
	logger     zerolog.Logger
	httpServer *http.Server
	runner     Runner
}

// NewServer creates a new API server instance
func NewServer(logger zerolog.Logger, runner Runner, port int) *Server {
	srv := &Server{
		logger: logger,
		runner: runner,
	}

	// Configure Gin
	if os.Getenv("GIN_MODE") != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv.router = gin.New()
	srv.router.Use(
		gin.Recovery(),
		requestLogger(logger),
	)

	srv.registerRoutes()

	srv.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: srv.router,
	}

	return srv
}

// Handler exposes the route handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Starting API server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	default:
		return nil
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down server...")

	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Error during server shutdown")
		return err
	}

	s.logger.Info().Msg("Server stopped")
	return nil
}

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	// Health check
	s.router.GET("/health", s.healthCheck)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/optimize", s.runOptimization)
	}

	// Dashboard: a static page that calls the optimize endpoint
	s.router.StaticFile("/", "./web/index.html")
}

// healthCheck handles the health check endpoint
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": "1.0.0",
	})
}

// requestLogger is a middleware that logs HTTP requests
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		// Process request
		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		errMsg := c.Errors.ByType(gin.ErrorTypePrivate).String()

		event := logger.Info()
		if statusCode >= 400 {
			event = logger.Error().Str("error", errMsg)
		}

		event.Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Str("ip", c.ClientIP()).
			Dur("latency", latency).
			Msg("Request processed")
	}
}
