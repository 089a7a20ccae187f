/*
Package monitoring provides Prometheus metrics for the orchestrator.

# Overview

Tracks supervised process lifecycle (restarts, state), aggregate health
verdicts and per-service probe outcomes, and introspection API traffic.
Metrics live in a private registry so tests can construct collectors freely.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))

	metrics.RecordRestart("x11vnc")
	metrics.SetProcessState("x11vnc", "running")
	metrics.RecordHealthCheck(true, elapsed)

Expose via the registry-bound handler:

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))
*/
package monitoring
