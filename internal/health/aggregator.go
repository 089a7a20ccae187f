package health

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/browserbox/browserbox/internal/infrastructure/logging"
	"github.com/browserbox/browserbox/internal/infrastructure/monitoring"
)

// Verdict is the outcome of one aggregate health check.
type Verdict struct {
	OK       bool            `json:"ok"`
	Statuses []ServiceStatus `json:"services"`
	Report   string          `json:"report"`
}

// Aggregator polls the service table in priority order and produces a
// single pass/fail verdict with a per-service report.
type Aggregator struct {
	specs   []ServiceSpec
	prober  *Prober
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewAggregator creates an aggregator over an immutable service table.
// The table is probed in tier order: critical, secondary, optional.
func NewAggregator(specs []ServiceSpec, prober *Prober, logger *logging.Logger) *Aggregator {
	ordered := make([]ServiceSpec, len(specs))
	copy(ordered, specs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Tier.rank() < ordered[j].Tier.rank()
	})
	return &Aggregator{
		specs:  ordered,
		prober: prober,
		logger: logger.Component("health"),
	}
}

// WithMetrics attaches a metrics collector.
func (a *Aggregator) WithMetrics(m *monitoring.Metrics) *Aggregator {
	a.metrics = m
	return a
}

// Check probes every service and aggregates the verdict. A critical-tier
// service exhausting its retries fails the check immediately; lower tiers
// are not probed in that case. Secondary and optional failures are
// reported but tolerated. Checks have no side effects beyond the probes.
func (a *Aggregator) Check(ctx context.Context) Verdict {
	start := time.Now()
	verdict := Verdict{OK: true}

	for _, spec := range a.specs {
		status := a.probe(ctx, spec)
		verdict.Statuses = append(verdict.Statuses, status)

		if a.metrics != nil {
			a.metrics.RecordProbe(spec.Name, status.Passed())
		}

		if !status.Passed() && spec.Tier == TierCritical {
			// Fast, fatal verdict: the load-bearing service is down, so
			// probing the rest only delays remediation.
			verdict.OK = false
			break
		}
	}

	verdict.Report = a.render(verdict)
	elapsed := time.Since(start)
	if a.metrics != nil {
		a.metrics.RecordHealthCheck(verdict.OK, elapsed)
	}
	a.logger.Info("health check complete",
		zap.Bool("ok", verdict.OK),
		zap.Duration("elapsed", elapsed),
		zap.Int("services_probed", len(verdict.Statuses)),
	)
	return verdict
}

// probe runs up to MaxRetries attempts for one service with a fixed delay
// between attempts. Total wall clock is bounded by
// MaxRetries * (Timeout + RetryDelay).
func (a *Aggregator) probe(ctx context.Context, spec ServiceSpec) ServiceStatus {
	status := ServiceStatus{Name: spec.Name, Tier: spec.Tier}

	retries := spec.MaxRetries
	if retries < 1 {
		retries = 1
	}

	for attempt := 1; attempt <= retries; attempt++ {
		status.Attempts = attempt

		reachable, httpOk, err := a.prober.Attempt(ctx, spec)
		status.Reachable = reachable
		status.HTTPOk = httpOk
		if err == nil {
			status.LastError = ""
			return status
		}
		status.LastError = err.Error()

		a.logger.Debug("probe attempt failed",
			zap.String("service", spec.Name),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", retries),
			zap.Error(err),
		)

		if attempt == retries {
			break
		}
		select {
		case <-ctx.Done():
			status.LastError = ctx.Err().Error()
			return status
		case <-time.After(spec.RetryDelay):
		}
	}
	return status
}

// render produces the human-readable report consumed by the external
// orchestrator's probe output.
func (a *Aggregator) render(v Verdict) string {
	var b strings.Builder
	if v.OK {
		b.WriteString("healthy\n")
	} else {
		b.WriteString("unhealthy\n")
	}
	for _, s := range v.Statuses {
		mark := "OK  "
		if !s.Passed() {
			mark = "FAIL"
		}
		detail := "reachable"
		if !s.Reachable {
			detail = "unreachable"
		} else if s.HTTPOk != nil {
			if *s.HTTPOk {
				detail = "reachable, http 2xx"
			} else {
				detail = "reachable, http failing"
			}
		}
		fmt.Fprintf(&b, "[%s] %-14s tier=%-9s %s (attempts=%d)", mark, s.Name, s.Tier, detail, s.Attempts)
		if s.LastError != "" {
			fmt.Fprintf(&b, " last_error=%s", s.LastError)
		}
		b.WriteString("\n")
	}
	return b.String()
}
