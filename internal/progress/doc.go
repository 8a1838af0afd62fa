// Package progress carries scrape lifecycle events from the engine to the
// terminal, the log, and Prometheus.
package progress
