// Package metric provides Prometheus metrics for lobbysync.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: the Registry of counters, gauges and histograms
//   - collector.go: a collector reporting the live session phase
//
// Metrics include:
//
//   - Polls issued and skipped
//   - Push channel events and connectivity
//   - Snapshots applied or rejected, by source
//   - Mutation outcomes, latency and queue depth
//   - Events dropped by slow subscribers
//
// Every method on a nil *Registry is a no-op, so components can run without
// metrics. The registry is isolated from the process default and served
// through Handler.
package metric
