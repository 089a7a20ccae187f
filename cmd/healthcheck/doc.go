// Command healthcheck is the probe invoked by the container platform's
// health mechanism. It runs the tiered service checks, prints the
// per-service report to stdout, and exits non-zero when the aggregate
// verdict fails.
package main
