// Package internal groups the implementation packages private to goAuthz.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function orchestrators for every Engine operation
//   - httpapi: chi router and server behind cmd/authd
//   - metrics: lock-free counters and latency histograms
//   - rate: Redis-backed fixed-window limiter for login and registration
//   - security: security posture report
//
// Nothing here is part of the public API.
package internal
