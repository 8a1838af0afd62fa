// Package sinks contains progress.Sink implementations for the terminal,
// structured logs, and Prometheus.
package sinks
