// Package api serves the orchestrator's introspection surface: the
// aggregate health endpoint consumed through the reverse proxy's /health
// route, the supervised process table, Prometheus metrics, a websocket
// feed of process state transitions, and authenticated task result
// lookups backed by the result store.
package api
