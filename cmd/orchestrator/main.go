package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/browserbox/browserbox/internal/api"
	"github.com/browserbox/browserbox/internal/health"
	"github.com/browserbox/browserbox/internal/infrastructure/config"
	"github.com/browserbox/browserbox/internal/infrastructure/logging"
	"github.com/browserbox/browserbox/internal/infrastructure/monitoring"
	"github.com/browserbox/browserbox/internal/ports"
	"github.com/browserbox/browserbox/internal/results"
	"github.com/browserbox/browserbox/internal/sequencer"
	"github.com/browserbox/browserbox/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "orchestrator: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting orchestrator",
		zap.Int("proxy_port", cfg.Proxy.ListenPort),
		zap.String("display", cfg.Display.Name))

	metrics := monitoring.NewMetrics()

	store := results.NewStore(cfg.Paths.ResultsRoot)
	if err := store.EnsureLayout(); err != nil {
		return fmt.Errorf("failed to prepare results layout: %w", err)
	}

	// Allocate the browser debug port before anything launches and export
	// the lease for the health probe and the proxy renderer.
	lease, err := ports.NewLease(cfg.Browser.DebugPort, cfg.Browser.DebugPortMax)
	if err != nil {
		return err
	}
	if err := ports.WriteLease(cfg.Paths.LeasePath(), lease); err != nil {
		return err
	}
	if lease.Bound != lease.Requested {
		logger.Warn("preferred debug port taken",
			zap.Int("requested", lease.Requested),
			zap.Int("bound", lease.Bound))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup := supervisor.New(logger).WithMetrics(metrics)
	seq := sequencer.New(cfg, sup, logger)
	if err := seq.Run(ctx, lease); err != nil {
		sup.Stop()
		return fmt.Errorf("startup sequence failed: %w", err)
	}

	specs := health.DefaultSpecs(cfg)
	if cfg.Health.ServicesFile != "" {
		loaded, err := health.LoadSpecs(cfg.Health.ServicesFile, cfg)
		if err != nil {
			logger.Warn("falling back to default health specs", zap.Error(err))
		} else {
			specs = loaded
		}
	}
	aggregator := health.NewAggregator(specs, health.NewProber(), logger).WithMetrics(metrics)

	srv := api.NewServer(cfg, sup, aggregator, store, logger, metrics)
	go func() {
		if err := srv.Run(); err != nil {
			logger.Error("introspection API stopped", zap.Error(err))
		}
	}()

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.UpdateUptime()
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
		sup.Stop()
	case <-sup.Done():
		// Foreground exit or a required process exhausting its restart
		// budget ends the unit.
		cancel()
		sup.Stop()
		if err := sup.Err(); err != nil {
			return err
		}
	}

	logger.Info("orchestrator stopped")
	return nil
}
