// Package security derives a configuration posture report for the engine.
//
// It depends only on plain values so the root package can build a report
// without exposing its Config type here.
package security
