// Thinkd is a reasoning-assistance daemon speaking the Model Context
// Protocol over stdio.
//
// The daemon records sequential thoughts with revision and branch markers,
// maintains per-session thought trees scored with UCB1, and serves
// operational endpoints (/health, /metrics) over HTTP.
//
// Usage:
//
//	# Start the daemon with defaults
//	thinkd
//
//	# Configure via file and environment
//	thinkd --config ~/.config/thinkd/config.yaml
//	THINKD_SERVER_OPS_PORT=9999 thinkd
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thinkd/internal/config"
	"github.com/fyrsmithlabs/thinkd/internal/history"
	"github.com/fyrsmithlabs/thinkd/internal/mcp"
	"github.com/fyrsmithlabs/thinkd/internal/metrics"
	"github.com/fyrsmithlabs/thinkd/internal/ops"
	"github.com/fyrsmithlabs/thinkd/internal/security"
	"github.com/fyrsmithlabs/thinkd/internal/services"
	"github.com/fyrsmithlabs/thinkd/internal/session"
	"github.com/fyrsmithlabs/thinkd/internal/thinking"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "thinkd",
	Short: "Sequential reasoning daemon for MCP clients",
	Long: `thinkd records sequential thoughts over the Model Context Protocol,
places them in per-session thought trees, and guides further reasoning with
UCB1 scoring. The MCP surface runs on stdio; /health and /metrics are
served over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd.Context())
	},
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("thinkd by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of a running thinkd daemon",
	RunE:  runHealth,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file path (default ~/.config/thinkd/config.yaml)")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// runDaemon wires the services and blocks until the context is cancelled.
func runDaemon(ctx context.Context) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("starting thinkd",
		zap.String("version", version),
		zap.Int("ops_port", cfg.Server.OpsPort),
		zap.Bool("tree_mode", cfg.Thinking.Enabled))

	registry, destroy := buildServices(cfg, logger)
	defer destroy()

	opsServer, err := ops.NewServer(ops.Config{
		Port:            cfg.Server.OpsPort,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		ServiceName:     cfg.Server.Name,
		Version:         cfg.Server.Version,
	}, registry, logger)
	if err != nil {
		return fmt.Errorf("init ops server: %w", err)
	}

	// Bridge OpenTelemetry metrics into the ops Prometheus registry so MCP
	// tool instrumentation lands on /metrics. Must be installed before the
	// MCP server creates its instruments.
	exporter, err := otelprom.New(otelprom.WithRegisterer(opsServer.PromRegistry()))
	if err != nil {
		return fmt.Errorf("init prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	mcpServer, err := mcp.NewServer(&mcp.Config{
		Name:    cfg.Server.Name,
		Version: cfg.Server.Version,
		Logger:  logger,
	}, registry)
	if err != nil {
		return fmt.Errorf("init mcp server: %w", err)
	}
	defer func() {
		_ = mcpServer.Close()
	}()

	// The ops listener shuts down with the context; its exit does not stop
	// the MCP loop on its own.
	opsErrCh := make(chan error, 1)
	go func() {
		if err := opsServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			opsErrCh <- err
		}
		close(opsErrCh)
	}()

	runErr := mcpServer.Run(ctx)

	if opsErr := <-opsErrCh; opsErr != nil && runErr == nil {
		runErr = opsErr
	}
	if runErr != nil && ctx.Err() == nil {
		return runErr
	}

	logger.Info("thinkd shutdown complete")
	return nil
}

// buildServices constructs the service graph and returns it with an
// ordered teardown func.
func buildServices(cfg *config.Config, logger *zap.Logger) (services.Registry, func()) {
	guard := security.New(security.Config{
		MaxThoughtsPerMinute: cfg.Security.MaxThoughtsPerMinute,
		BlockedPatterns:      cfg.Security.BlockedPatterns,
	}, logger)

	store := history.New(history.Config{
		MaxHistorySize:       cfg.History.MaxHistorySize,
		MaxThoughtLength:     cfg.History.MaxThoughtLength,
		MaxBranchAge:         cfg.History.MaxBranchAge,
		MaxThoughtsPerBranch: cfg.History.MaxThoughtsPerBranch,
		CleanupInterval:      cfg.History.CleanupInterval,
	}, logger)

	scfg := session.DefaultConfig()
	scfg.IdleTimeout = cfg.Session.IdleTimeout
	scfg.ActiveThreshold = cfg.Session.ActiveThreshold
	scfg.SweepInterval = cfg.Session.SweepInterval
	tracker := session.New(scfg, logger)

	// Rate-limiter state follows session lifetime.
	tracker.OnEviction(func(ids []string) {
		for _, id := range ids {
			guard.ForgetSession(id)
		}
	})

	var manager *thinking.Manager
	if cfg.Thinking.Enabled {
		manager = thinking.New(thinking.Config{
			Enabled:            true,
			TreeCapacity:       cfg.Thinking.TreeCapacity,
			MaxTreeAge:         cfg.Thinking.MaxTreeAge,
			MaxConcurrentTrees: cfg.Thinking.MaxConcurrentTrees,
		}, nil, logger)
		manager.Subscribe(tracker)
	}

	collector := metrics.New(store, tracker)

	registry := services.NewRegistry(services.Options{
		History:  store,
		Sessions: tracker,
		Thinking: manager,
		Guard:    guard,
		Metrics:  collector,
	})

	destroy := func() {
		collector.Destroy()
		tracker.Destroy()
		store.Destroy()
	}
	return registry, destroy
}

// initLogger builds the structured logger. Output goes to stderr; stdout
// belongs to the MCP stdio transport.
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = level
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}

// runHealth queries the ops /health endpoint of a running daemon.
func runHealth(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	url := fmt.Sprintf("http://localhost:%d/health", cfg.Server.OpsPort)
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", url, err)
	}
	defer resp.Body.Close()

	var body ops.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}

	fmt.Printf("Status:  %s\n", body.Status)
	fmt.Printf("Service: %s\n", body.Service)
	fmt.Printf("Version: %s\n", body.Version)
	if body.Status != "ok" {
		return fmt.Errorf("daemon reports %q", body.Status)
	}
	return nil
}
