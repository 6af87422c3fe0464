// Package main is the entry point for the AMM price engine daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/r0zar/amm-price-engine/business/oracle"
	oracleDI "github.com/r0zar/amm-price-engine/business/oracle/di"
	"github.com/r0zar/amm-price-engine/business/pricing"
	pricingDI "github.com/r0zar/amm-price-engine/business/pricing/di"
	"github.com/r0zar/amm-price-engine/internal/apm"
	"github.com/r0zar/amm-price-engine/internal/config"
	"github.com/r0zar/amm-price-engine/internal/health"
	"github.com/r0zar/amm-price-engine/internal/logger"
	"github.com/r0zar/amm-price-engine/internal/metrics"
	"github.com/r0zar/amm-price-engine/internal/monolith"
	"github.com/r0zar/amm-price-engine/pkg/api"
	"github.com/r0zar/amm-price-engine/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// application is the slice of the monolith container the entry point drives.
type application interface {
	monolith.Monolith
	RegisterModules(...monolith.Module) error
	StartModules(context.Context, ...monolith.Module) error
}

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run in CLI mode with logs (no TUI)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("pricingd %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// TUI is the default, CLI is for debugging and headless deployments
	tuiMode := !*cliMode

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !tuiMode {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
	}()

	if err := run(ctx, *configPath, tuiMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, tuiMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}

	var log *logger.Logger
	if tuiMode {
		// In TUI mode, suppress logs (discard output)
		log = logger.New(io.Discard, logLevel, cfg.App.Name, nil)
	} else {
		log = logger.New(os.Stderr, logLevel, cfg.App.Name, nil)
		log.Info(ctx, "starting AMM price engine",
			"version", version,
			"environment", cfg.App.Environment,
		)
	}

	// Initialize observability if enabled
	var traceProvider apm.TraceProvider
	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.ServiceName != "" {
			os.Setenv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
		}
		if cfg.Telemetry.OTLPEndpoint != "" {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
		}

		traceProvider = apm.NewTraceProvider(log, apm.WithProvider(apm.OTLPProvider, log))
		log.Info(ctx, "tracing initialized", "endpoint", cfg.Telemetry.OTLPEndpoint)

		metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.NewPrometheusConfig()),
		)

		port := cfg.Telemetry.PrometheusPort
		if port == 0 {
			port = 9090
		}
		go metrics.ServePrometheusMetrics(metrics.WithPort(strconv.Itoa(port)))
		log.Info(ctx, "prometheus metrics server started", "port", port)
	}
	defer func() {
		if traceProvider != nil {
			traceProvider.Stop()
		}
	}()

	// Create monolith (application container)
	mono, err := monolith.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}

	// Define modules in dependency order
	modules := []monolith.Module{
		&oracle.Module{},  // Must be first - pricing consumes the aggregator
		&pricing.Module{}, // Depends on oracle for the anchor price
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	// Health server with engine-backed checks
	if cfg.Health.Enabled {
		healthServer := health.NewServer(cfg.Health.Port, version)
		healthServer.RegisterCheck("graph", func(ctx context.Context) (bool, string) {
			engine := pricingDI.GetEngine(mono.Services())
			stats, err := engine.GetStats(ctx)
			if err != nil {
				return false, err.Error()
			}
			return true, fmt.Sprintf("%d pools, %d priced tokens", stats.PoolCount, stats.PricedTokenCount)
		})
		healthServer.RegisterCheck("oracle", func(ctx context.Context) (bool, string) {
			h := oracleDI.GetAggregator(mono.Services()).Health()
			if h.LastSuccessfulUpdate.IsZero() {
				return false, "no successful aggregation yet"
			}
			return true, fmt.Sprintf("last update %s ago", time.Since(h.LastSuccessfulUpdate).Round(time.Second))
		})
		if err := healthServer.Start(); err != nil {
			log.Warn(ctx, "failed to start health server", "error", err)
		} else {
			log.Info(ctx, "health server started", "port", cfg.Health.Port)
		}
		defer healthServer.Stop(context.Background())
	}

	startAPI := func() (*api.Server, error) {
		if !cfg.API.Enabled {
			return nil, nil
		}
		srv := api.NewServer(api.DefaultConfig(cfg.API.Port),
			pricingDI.GetEngine(mono.Services()),
			oracleDI.GetAggregator(mono.Services()),
			log)
		if err := srv.Start(); err != nil {
			return nil, err
		}
		return srv, nil
	}

	if tuiMode {
		return runTUI(ctx, cfg, mono, modules, startAPI)
	}
	return runCLI(ctx, cfg, mono, modules, startAPI, log)
}

func runCLI(ctx context.Context, cfg *config.Config, mono application, modules []monolith.Module, startAPI func() (*api.Server, error), log *logger.Logger) error {
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	apiServer, err := startAPI()
	if err != nil {
		return fmt.Errorf("failed to start api server: %w", err)
	}
	if apiServer != nil {
		defer apiServer.Stop(context.Background())
	}

	log.Info(ctx, "all modules started")

	// Periodic refresh keeps the graph warm between reads and logs a
	// one-line summary per cycle.
	interval := cfg.Pricing.RefreshInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	engine := pricingDI.GetEngine(mono.Services())
	for {
		select {
		case <-ctx.Done():
			log.Info(ctx, "shutting down")
			return nil
		case <-ticker.C:
			stats, err := engine.GetStats(ctx)
			if err != nil {
				log.Warn(ctx, "refresh cycle failed", "error", err)
				continue
			}
			log.Info(ctx, "refresh cycle",
				"tokens", stats.TokenCount,
				"pools", stats.PoolCount,
				"priced", stats.PricedTokenCount,
				"graphAgeMs", stats.GraphAgeMs)
		}
	}
}

func runTUI(ctx context.Context, cfg *config.Config, mono application, modules []monolith.Module, startAPI func() (*api.Server, error)) error {
	// Channel to receive StartModulesMsg signal
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	// Create and start the TUI program IMMEDIATELY (shows welcome screen)
	p := tea.NewProgram(ui.New(), tea.WithAltScreen())
	ui.Program = p

	errCh := make(chan error, 1)
	go func() {
		// Wait for welcome screen to complete (StartModulesMsg signal)
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}

		ui.Send(ui.StartupMsg{Step: "config", Status: "done"})
		ui.Send(ui.StartupMsg{Step: "oracle", Status: "connecting"})
		ui.Send(ui.StartupMsg{Step: "pools", Status: "connecting"})
		ui.Send(ui.StartupMsg{Step: "graph", Status: "connecting"})

		if err := mono.StartModules(ctx, modules...); err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
			errCh <- err
			return
		}

		apiServer, err := startAPI()
		if err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
		}

		// Feed the dashboard until shutdown
		feed := newDashboardFeed(cfg, mono.Services())
		feed.Run(ctx)

		if apiServer != nil {
			_ = apiServer.Stop(context.Background())
		}
		errCh <- nil
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}
