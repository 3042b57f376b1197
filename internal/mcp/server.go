package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thinkd/internal/services"
)

// Server is the MCP server that calls internal services directly.
type Server struct {
	mcp      *mcp.Server
	registry services.Registry
	metrics  *Metrics
	logger   *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "thinkd").
	Name string

	// Version is the server version (default: "1.0.0").
	Version string

	// Logger for structured logging.
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "thinkd",
		Version: "1.0.0",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates an MCP server backed by the given service registry.
func NewServer(cfg *Config, registry services.Registry) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if registry == nil {
		return nil, fmt.Errorf("service registry is required")
	}
	if registry.History() == nil {
		return nil, fmt.Errorf("history store is required")
	}
	if registry.Guard() == nil {
		return nil, fmt.Errorf("security guard is required")
	}
	if registry.Sessions() == nil {
		return nil, fmt.Errorf("session tracker is required")
	}
	// Thinking and metrics are optional features; tools degrade gracefully
	// when they are absent.

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:      mcpServer,
		registry: registry,
		metrics:  NewMetrics(cfg.Logger),
		logger:   cfg.Logger.Named("mcp"),
	}
	s.registerTools()
	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Close tears down the underlying services in dependency order.
func (s *Server) Close() error {
	s.logger.Info("closing MCP server and services")

	if m := s.registry.Metrics(); m != nil {
		m.Destroy()
	}
	if tr := s.registry.Sessions(); tr != nil {
		tr.Destroy()
	}
	if h := s.registry.History(); h != nil {
		h.Destroy()
	}
	return nil
}
