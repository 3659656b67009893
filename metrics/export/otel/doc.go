// Package otel publishes goAuthz engine metrics as OpenTelemetry instruments.
//
// Counters are grouped per operation into attributed instruments such as
// goauthz.login{result} and goauthz.authorize.decisions{outcome}, following
// internaldefs.Families. Authorize latency is exported as a cumulative
// gauge keyed by its le bound. A single callback reads
// Engine.MetricsSnapshot on each collection cycle. Callers own the
// MeterProvider.
package otel
