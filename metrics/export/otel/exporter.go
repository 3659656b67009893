package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	goAuthz "github.com/MrEthical07/goAuthz"
	"github.com/MrEthical07/goAuthz/metrics/export/internaldefs"
)

const (
	latencyBucketsName = "goauthz.authorize.latency.buckets"
	latencyCountName   = "goauthz.authorize.latency.count"
	auditDroppedName   = "goauthz.audit.dropped"
	boundAttribute     = "le"
)

var (
	// ErrNilMeter is returned when no meter is supplied.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is returned when no engine or source is supplied.
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goAuthz.MetricsSnapshot
	AuditDropped() uint64
}

// labelledOutcome pairs an outcome with its precomputed attribute set.
type labelledOutcome struct {
	outcome internaldefs.Outcome
	attrs   metric.ObserveOption
}

type family struct {
	counter  metric.Int64ObservableCounter
	outcomes []labelledOutcome
}

// Exporter publishes engine metrics as one attributed instrument per
// operation, for example goauthz.authorize.decisions{outcome="forbidden"}.
type Exporter struct {
	source       metricsSource
	registration metric.Registration
	families     []family
	bounds       []metric.ObserveOption
	buckets      metric.Int64ObservableGauge
	count        metric.Int64ObservableGauge
	auditDropped metric.Int64ObservableCounter
}

// New registers instruments for engine on meter.
func New(meter metric.Meter, engine *goAuthz.Engine) (*Exporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewFromSource(meter, engine)
}

// NewFromSource registers instruments that read from source on every
// collection.
func NewFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	observables := make([]metric.Observable, 0, len(internaldefs.Families)+3)

	for _, def := range internaldefs.Families {
		counter, err := meter.Int64ObservableCounter(def.Name,
			metric.WithDescription(def.Help),
			metric.WithUnit(def.Unit),
		)
		if err != nil {
			return nil, fmt.Errorf("otel: create counter %s: %w", def.Name, err)
		}
		fam := family{counter: counter, outcomes: make([]labelledOutcome, len(def.Outcomes))}
		for i, o := range def.Outcomes {
			set := attribute.NewSet()
			if def.Attribute != "" {
				set = attribute.NewSet(attribute.String(def.Attribute, o.Value))
			}
			fam.outcomes[i] = labelledOutcome{outcome: o, attrs: metric.WithAttributeSet(set)}
		}
		e.families = append(e.families, fam)
		observables = append(observables, counter)
	}

	// OpenTelemetry has no asynchronous histogram, so the authorize latency
	// buckets are a cumulative gauge keyed by upper bound.
	var err error
	e.buckets, err = meter.Int64ObservableGauge(latencyBucketsName,
		metric.WithDescription("Cumulative authorize latency samples at or below each bound in seconds."),
		metric.WithUnit("{sample}"),
	)
	if err != nil {
		return nil, fmt.Errorf("otel: create latency buckets: %w", err)
	}
	e.count, err = meter.Int64ObservableGauge(latencyCountName,
		metric.WithDescription("Total authorize latency samples."),
		metric.WithUnit("{sample}"),
	)
	if err != nil {
		return nil, fmt.Errorf("otel: create latency count: %w", err)
	}
	for _, le := range internaldefs.HistogramBoundLabels {
		e.bounds = append(e.bounds, metric.WithAttributes(attribute.String(boundAttribute, le)))
	}

	e.auditDropped, err = meter.Int64ObservableCounter(auditDroppedName,
		metric.WithDescription("Audit events dropped because the dispatcher queue was full."),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("otel: create audit dropped counter: %w", err)
	}
	observables = append(observables, e.buckets, e.count, e.auditDropped)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("otel: register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, fam := range e.families {
		for _, lo := range fam.outcomes {
			o.ObserveInt64(fam.counter, int64(lo.outcome.Resolve(snapshot.Counters)), lo.attrs)
		}
	}

	if raw, ok := snapshot.Histograms[goAuthz.MetricAuthorizeLatency]; ok {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i, opt := range e.bounds {
			o.ObserveInt64(e.buckets, int64(cumulative[i]), opt)
		}
		o.ObserveInt64(e.count, int64(cumulative[len(cumulative)-1]))
	}

	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
