// Package results manages the per-task result directory layout produced
// for downstream consumers: a structured result file, an animated preview
// and per-step image captures, all addressable by task ID under a
// well-known root.
package results
