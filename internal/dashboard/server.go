package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/forge/internal/history"
)

// Server serves the dashboard page and run history over HTTP.
type Server struct {
	echo   *echo.Echo
	dir    string
	logger *zap.Logger
	config *Config
}

// Config holds dashboard server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a dashboard server for a working directory.
func NewServer(dir string, logger *zap.Logger, cfg *Config) (*Server, error) {
	if dir == "" {
		return nil, fmt.Errorf("working directory cannot be empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8712,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:   e,
		dir:    dir,
		logger: logger,
		config: cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleIndex)
	s.echo.GET("/health", s.handleHealth)

	// API v1 routes
	v1 := s.echo.Group("/api/v1")
	v1.GET("/runs", s.handleRuns)
	v1.GET("/stats", s.handleStats)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// RunsResponse is the response body for GET /api/v1/runs.
type RunsResponse struct {
	Runs  []history.RunRecord `json:"runs"`
	Count int                 `json:"count"`
}

// StatsResponse is the response body for GET /api/v1/stats.
type StatsResponse struct {
	Runs         int                `json:"runs"`
	AvgScore     float64            `json:"avg_score"`
	ApprovalRate float64            `json:"approval_rate"`
	TotalCostUSD float64            `json:"total_cost_usd"`
	Best         *history.RunRecord `json:"best,omitempty"`
}

// handleIndex renders the dashboard from the history file on every
// request so the page is never stale.
func (s *Server) handleIndex(c echo.Context) error {
	html, err := Render(history.Load(s.dir))
	if err != nil {
		s.logger.Error("dashboard render failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "dashboard render failed")
	}
	return c.HTMLBlob(http.StatusOK, html)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleRuns returns the full run history, oldest first.
func (s *Server) handleRuns(c echo.Context) error {
	records := history.Load(s.dir)
	if records == nil {
		records = []history.RunRecord{}
	}
	return c.JSON(http.StatusOK, RunsResponse{Runs: records, Count: len(records)})
}

// handleStats returns aggregate stats over the run history.
func (s *Server) handleStats(c echo.Context) error {
	stats := history.Summarize(history.Load(s.dir))
	return c.JSON(http.StatusOK, StatsResponse{
		Runs:         stats.Runs,
		AvgScore:     stats.AvgScore,
		ApprovalRate: stats.ApprovalRate,
		TotalCostUSD: stats.TotalCostUSD,
		Best:         stats.Best,
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting dashboard server", zap.String("addr", s.Addr()))
	return s.echo.Start(s.Addr())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down dashboard server")
	return s.echo.Shutdown(ctx)
}
