package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mark-ai1/Break-Management/internal/adapter/inbound/rest"
	"github.com/mark-ai1/Break-Management/internal/adapter/outbound/memory"
	"github.com/mark-ai1/Break-Management/internal/adapter/outbound/notify"
	"github.com/mark-ai1/Break-Management/internal/adapter/outbound/sqlite"
	"github.com/mark-ai1/Break-Management/internal/clock"
	"github.com/mark-ai1/Break-Management/internal/config"
	"github.com/mark-ai1/Break-Management/internal/domain/breaks"
	"github.com/mark-ai1/Break-Management/internal/port/outbound"
	"github.com/mark-ai1/Break-Management/internal/service"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the break tracking service",
	Long: `Start the breakdesk HTTP service.

Loads breakdesk.yaml (or the file given via --config), builds the
category registry and the configured session store, and serves the
JSON API plus Prometheus metrics until interrupted.`,
	RunE: runStart,
}

var devMode bool

func init() {
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (verbose logging)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if devMode {
		cfg.DevMode = true
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Signal context for graceful shutdown. stop() restores default
	// signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logLevel := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("breakdesk stopped")
	return nil
}

// run wires all components together and serves until ctx is done.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	categories := make([]breaks.Category, len(cfg.Categories))
	for i, c := range cfg.Categories {
		categories[i] = breaks.Category{Name: c.Name, Capacity: c.Capacity}
	}
	registry, err := breaks.NewRegistry(categories)
	if err != nil {
		return fmt.Errorf("failed to build category registry: %w", err)
	}
	logger.Info("categories registered", "count", len(categories))

	var store breaks.SessionStore
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		sqlStore, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to open sqlite store: %w", err)
		}
		defer sqlStore.Close()
		store = sqlStore
		logger.Info("using sqlite session store", "path", cfg.Storage.Path)
	default:
		store = memory.NewSessionStore()
		logger.Info("using in-memory session store")
	}

	clk := clock.New()

	var notifier outbound.Notifier = notify.NewLogNotifier(logger)

	engine := service.NewEngine(store, registry, clk, notifier, logger, service.EngineConfig{
		BreakDuration: cfg.BreakDuration(),
		GracePeriod:   cfg.GracePeriod(),
		PenaltyAmount: cfg.Break.PenaltyAmount,
	})

	stats := service.NewStatsService(registry, clk, logger, cfg.StatsWindow())
	stats.StartWindowReset(ctx)
	defer stats.Stop()
	engine.Subscribe(stats)

	promRegistry := prometheus.NewRegistry()
	metrics := rest.NewMetrics(promRegistry)
	engine.Subscribe(metrics)

	adjudication := service.NewAdjudicationService(engine)
	handler := rest.NewHandler(engine, adjudication, stats, metrics, logger)
	server := rest.NewServer(cfg.Server.HTTPAddr, handler.Routes(promRegistry), logger)

	logger.Info("breakdesk starting",
		"addr", cfg.Server.HTTPAddr,
		"break_duration", cfg.BreakDuration().String(),
		"grace_period", cfg.GracePeriod().String(),
		"stats_window", cfg.StatsWindow().String(),
	)
	return server.Run(ctx)
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
