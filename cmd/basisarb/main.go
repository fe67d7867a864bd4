// Package main is the entry point for the basis arbitrage engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"basisarb/business/account"
	"basisarb/business/exchange"
	"basisarb/business/instrument"
	"basisarb/business/trading"
	"basisarb/internal/apm"
	"basisarb/internal/config"
	"basisarb/internal/health"
	"basisarb/internal/logger"
	"basisarb/internal/metrics"
	"basisarb/internal/monolith"
	"basisarb/internal/notify"
	"basisarb/internal/supervisor"
	"basisarb/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	tuiMode := flag.Bool("tui", false, "Run with the terminal dashboard instead of log output")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("basisarb %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *tuiMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, tuiMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.App.TUIMode = tuiMode

	// The dashboard owns the terminal, so logs are suppressed in TUI mode.
	logSink := io.Writer(os.Stderr)
	if tuiMode {
		logSink = io.Discard
	}
	log := logger.New(logSink, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, apm.TraceID)
	log.Info(ctx, "starting basis arbitrage engine",
		"version", version,
		"environment", cfg.App.Environment,
	)

	var traceProvider apm.TraceProvider
	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.ServiceName != "" {
			os.Setenv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
		}
		if cfg.Telemetry.OTLPEndpoint != "" {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
		}

		traceProvider = apm.NewTraceProvider(log, apm.WithProvider(apm.ZipkinProvider, log))
		log.Info(ctx, "tracing initialized", "endpoint", cfg.Telemetry.OTLPEndpoint)

		if _, err := metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithPrometheus(),
		); err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}

		port := cfg.Telemetry.PrometheusPort
		if port == 0 {
			port = 9090
		}
		go func() {
			if err := metrics.ServePrometheusMetrics(port); err != nil {
				log.Warn(ctx, "metrics server stopped", "error", err)
			}
		}()
		log.Info(ctx, "prometheus metrics server started", "port", port)
	}
	defer func() {
		if traceProvider != nil {
			traceProvider.Stop()
		}
	}()

	healthPort := cfg.Telemetry.HealthPort
	if healthPort == 0 {
		healthPort = 8081
	}
	healthServer := health.NewServer(healthPort, version)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", healthPort)
	}
	defer healthServer.Stop(context.Background())

	sup := supervisor.New(log)
	notifier := notify.New(cfg.Notifications, log)

	mono, err := monolith.New(cfg, log, sup, notifier)
	if err != nil {
		return fmt.Errorf("failed to create application container: %w", err)
	}

	// Modules in dependency order: the gateway first, then balances and
	// instruments it feeds, then the trading engines on top.
	modules := []monolith.Module{
		&exchange.Module{},
		&account.Module{},
		&instrument.Module{},
		&trading.Module{},
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	notifier.Send(ctx, "basisarb started")
	log.Info(ctx, "all modules started")

	if tuiMode {
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				ui.Send(tea.Quit())
			case <-done:
			}
		}()
		if err := ui.Run(cfg.Arbitrage.OpenRatioDecimal()); err != nil {
			log.Error(ctx, "dashboard error", "error", err)
		}
		close(done)
	} else {
		<-ctx.Done()
	}
	log.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := mono.Close(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "shutdown error", "error", err)
	}
	notifier.Send(shutdownCtx, "basisarb stopped")
	return nil
}
