// Package logging provides structured logging built on zap.
//
// Production output is JSON on stdout; development mode switches to a
// colored console encoder. Components obtain named child loggers via
// Logger.Component.
package logging
