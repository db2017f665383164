// Package metrics collects per-tier cache hit counters and exponentially
// smoothed latency estimates, and exports them through prometheus.
package metrics
