// Package metrics provides lock-free counters and the authorize latency
// histogram for goAuthz.
//
// Counters sit in cache-line-padded uint64 slots and are incremented with
// sync/atomic. The histogram has 8 fixed buckets (5ms up to +Inf). Export to
// Prometheus and OpenTelemetry lives in metrics/export and reads Snapshot
// values; this package performs no I/O and keeps no global registry.
package metrics
