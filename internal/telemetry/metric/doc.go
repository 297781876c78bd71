// Package metric provides Prometheus metrics for WirePool.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: Prometheus registry and HTTP handler
//   - collector.go: Custom collector for broker state
//
// Metrics include:
//
//   - Request latency histograms
//   - Session lifecycle counters and gauges
//   - Admission rejection counters
//   - Node occupancy and load gauges
//   - Sweep duration histograms
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
