package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/browserbox/browserbox/internal/health"
	"github.com/browserbox/browserbox/internal/infrastructure/config"
	"github.com/browserbox/browserbox/internal/infrastructure/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck: %v\n", err)
		os.Exit(1)
	}

	specs := health.DefaultSpecs(cfg)
	if cfg.Health.ServicesFile != "" {
		if loaded, err := health.LoadSpecs(cfg.Health.ServicesFile, cfg); err == nil {
			specs = loaded
		}
	}

	// Bound the whole check: worst case is every service exhausting its
	// retry budget.
	budget := time.Duration(len(specs)) *
		time.Duration(cfg.Health.MaxRetries) *
		(cfg.Health.Timeout + cfg.Health.RetryDelay)
	if budget <= 0 {
		budget = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	aggregator := health.NewAggregator(specs, health.NewProber(), logging.NewNop())
	verdict := aggregator.Check(ctx)

	fmt.Println(verdict.Report)
	if !verdict.OK {
		os.Exit(1)
	}
}
