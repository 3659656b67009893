// Package prometheus exports goAuthz engine metrics through a
// client_golang Collector. Register it on an existing registry or serve it
// on its own with Handler.
package prometheus
