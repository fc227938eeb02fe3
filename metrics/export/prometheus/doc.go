// Package prometheus exposes engine counters and the second factor latency
// histogram as a client_golang [Collector].
//
// Register the collector with any registry, or mount [Collector.Handler]
// to serve it alone. Counter names are gomfa_*_total; the histogram is
// gomfa_second_factor_latency_seconds.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
