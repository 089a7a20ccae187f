package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the orchestrator.
type Metrics struct {
	// HTTP metrics (introspection API)
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Supervisor metrics
	ProcessRestarts *prometheus.CounterVec
	ProcessState    *prometheus.GaugeVec
	ProcessesUp     prometheus.Gauge

	// Health metrics
	HealthChecks    *prometheus.CounterVec
	HealthDuration  prometheus.Histogram
	ServiceProbes   *prometheus.CounterVec
	HealthyVerdict  prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector backed by its own registry so
// repeated construction in tests does not collide.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		startTime: time.Now(),
		registry:  reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		ProcessRestarts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_process_restarts_total",
				Help: "Total number of supervised process restarts",
			},
			[]string{"program"},
		),
		ProcessState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "orchestrator_process_state",
				Help: "Supervised process state (1 for the current state)",
			},
			[]string{"program", "state"},
		),
		ProcessesUp: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestrator_processes_running",
				Help: "Number of supervised processes currently running",
			},
		),

		HealthChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_health_checks_total",
				Help: "Total number of aggregate health checks by verdict",
			},
			[]string{"verdict"},
		),
		HealthDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "orchestrator_health_check_duration_seconds",
				Help:    "Aggregate health check duration in seconds",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60},
			},
		),
		ServiceProbes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_service_probes_total",
				Help: "Total number of per-service probe attempts by outcome",
			},
			[]string{"service", "outcome"},
		),
		HealthyVerdict: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestrator_healthy",
				Help: "1 when the last aggregate health verdict passed, 0 otherwise",
			},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestrator_uptime_seconds",
				Help: "Orchestrator uptime in seconds",
			},
		),
	}
}

// RecordRestart increments the restart counter for a program.
func (m *Metrics) RecordRestart(program string) {
	m.ProcessRestarts.WithLabelValues(program).Inc()
}

// SetProcessState marks the current state for a program, clearing the others.
func (m *Metrics) SetProcessState(program, state string) {
	for _, s := range []string{"starting", "running", "backing_off", "exited", "failed"} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		m.ProcessState.WithLabelValues(program, s).Set(v)
	}
}

// RecordHealthCheck records an aggregate verdict and its duration.
func (m *Metrics) RecordHealthCheck(ok bool, duration time.Duration) {
	verdict := "pass"
	up := 1.0
	if !ok {
		verdict = "fail"
		up = 0.0
	}
	m.HealthChecks.WithLabelValues(verdict).Inc()
	m.HealthDuration.Observe(duration.Seconds())
	m.HealthyVerdict.Set(up)
}

// RecordProbe records a single per-service probe attempt outcome.
func (m *Metrics) RecordProbe(service string, ok bool) {
	outcome := "pass"
	if !ok {
		outcome = "fail"
	}
	m.ServiceProbes.WithLabelValues(service, outcome).Inc()
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}

// Registry exposes the backing registry for the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
