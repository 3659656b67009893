package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestDisabledNoIncrement(t *testing.T) {
	m := New(Config{Enabled: false})
	m.Inc(LoginSuccess)
	if got := m.Value(LoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if s := m.Snapshot(); len(s.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %v", s.Counters)
	}
}

func TestNilMetricsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(LoginSuccess)
	m.Observe(AuthorizeLatency, time.Millisecond)
	if m.Value(LoginSuccess) != 0 || m.Enabled() {
		t.Fatal("expected nil metrics to be inert")
	}
}

func TestConcurrentIncrement(t *testing.T) {
	m := New(Config{Enabled: true})

	const goroutines = 16
	const perG = 2000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(AuthorizeAllowed)
			}
		}()
	}
	wg.Wait()

	if got, want := m.Value(AuthorizeAllowed), uint64(goroutines*perG); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestHistogramBuckets(t *testing.T) {
	m := New(Config{Enabled: true, EnableLatencyHistograms: true})

	for _, d := range []time.Duration{
		time.Millisecond,
		8 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		90 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		2 * time.Second,
	} {
		m.Observe(AuthorizeLatency, d)
	}

	buckets := m.Snapshot().Histograms[AuthorizeLatency]
	if len(buckets) != BucketCount {
		t.Fatalf("expected %d buckets, got %d", BucketCount, len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d: expected 1, got %d", i, v)
		}
	}
}

func TestLatencyDisabledOmitsHistogram(t *testing.T) {
	m := New(Config{Enabled: true})
	m.Observe(AuthorizeLatency, time.Millisecond)
	if _, ok := m.Snapshot().Histograms[AuthorizeLatency]; ok {
		t.Fatal("expected no histogram when latency is disabled")
	}
}
