// Package ops provides the operational HTTP server for thinkd.
//
// The MCP surface runs on stdio; this server carries the out-of-band
// endpoints: GET /health for liveness and GET /metrics for Prometheus
// scrapes. Domain gauges read live service state on every scrape.
package ops

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thinkd/internal/services"
)

// Config configures the ops server.
type Config struct {
	// Port is the listen port (default 9190).
	Port int

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration

	// ServiceName is reported by /health.
	ServiceName string

	// Version is reported by /health.
	Version string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:            9190,
		ShutdownTimeout: 10 * time.Second,
		ServiceName:     "thinkd",
		Version:         "1.0.0",
	}
}

// HealthResponse is the JSON response for the /health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// Server is the operational HTTP server.
type Server struct {
	cfg      Config
	echo     *echo.Echo
	registry services.Registry
	prom     *prometheus.Registry
	logger   *zap.Logger
}

// NewServer creates the ops server and registers its routes and collectors.
func NewServer(cfg Config, registry services.Registry, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		return nil, fmt.Errorf("service registry is required")
	}
	if registry.History() == nil || registry.Sessions() == nil {
		return nil, fmt.Errorf("history store and session tracker are required")
	}
	def := DefaultConfig()
	if cfg.Port == 0 {
		cfg.Port = def.Port
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = def.ServiceName
	}
	if cfg.Version == "" {
		cfg.Version = def.Version
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{
		cfg:      cfg,
		echo:     e,
		registry: registry,
		prom:     prometheus.NewRegistry(),
		logger:   logger.Named("ops"),
	}
	if err := s.registerCollectors(); err != nil {
		return nil, fmt.Errorf("register collectors: %w", err)
	}
	s.registerRoutes()
	return s, nil
}

// PromRegistry returns the Prometheus registry backing /metrics so callers
// can attach additional collectors (the OpenTelemetry bridge, for one).
func (s *Server) PromRegistry() *prometheus.Registry {
	return s.prom
}

// registerCollectors registers runtime and domain collectors. Domain gauges
// read the live services on each scrape instead of caching values.
func (s *Server) registerCollectors() error {
	if err := s.prom.Register(collectors.NewGoCollector()); err != nil {
		return err
	}

	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "thinkd_history_size",
			Help: "Thoughts currently held in the main history sequence.",
		}, func() float64 {
			return float64(s.registry.History().Stats().TotalThoughts)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "thinkd_branches",
			Help: "Branches currently held in the history store.",
		}, func() float64 {
			return float64(s.registry.History().BranchCount())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "thinkd_active_sessions",
			Help: "Sessions active within the tracker threshold.",
		}, func() float64 {
			return float64(s.registry.Sessions().ActiveCount())
		}),
	}

	if c := s.registry.Metrics(); c != nil {
		gauges = append(gauges,
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Name: "thinkd_thoughts_processed_total",
				Help: "Total thoughts accepted since startup.",
			}, func() float64 {
				return float64(c.Snapshot().TotalThoughts)
			}),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Name: "thinkd_requests_total",
				Help: "Total tool requests since startup.",
			}, func() float64 {
				return float64(c.Snapshot().TotalRequests)
			}),
		)
	}
	if m := s.registry.Thinking(); m != nil {
		gauges = append(gauges, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "thinkd_tree_sessions",
			Help: "Sessions with a live thought tree.",
		}, func() float64 {
			return float64(m.SessionCount())
		}))
	}

	for _, g := range gauges {
		if err := s.prom.Register(g); err != nil {
			return err
		}
	}
	return nil
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(
		promhttp.HandlerFor(s.prom, promhttp.HandlerOpts{})))
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(c echo.Context) error {
	status := "ok"
	if g := s.registry.Guard(); g != nil && !g.Status().Healthy {
		status = "degraded"
	}
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  status,
		Service: s.cfg.ServiceName,
		Version: s.cfg.Version,
	})
}

// Start starts the HTTP server and blocks until the context is cancelled.
// Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.Info("starting ops server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Echo returns the underlying Echo instance for registering extra routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
