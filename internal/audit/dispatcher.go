package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards routine events when the queue is full instead of
	// waiting. Critical events are never discarded.
	DropIfFull bool
	// SinkTimeout bounds each Sink.Emit call. Zero means no deadline.
	SinkTimeout time.Duration
	// Critical selects events that travel on a separate lane, are delivered
	// before routine events and wait for room instead of being dropped.
	Critical func(Event) bool
}

// Dispatcher hands audit events to a sink on one background goroutine so
// authentication paths never wait on sink I/O.
type Dispatcher struct {
	cfg      Config
	sink     Sink
	critical chan Event
	routine  chan Event
	quit     chan struct{}
	finished chan struct{}

	delivered atomic.Uint64
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once

	mu          sync.Mutex
	droppedType map[string]uint64
}

// NewDispatcher starts a dispatcher. It returns nil when auditing is
// disabled; a nil Dispatcher accepts and discards events.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:         cfg,
		sink:        sink,
		critical:    make(chan Event, cfg.BufferSize),
		routine:     make(chan Event, cfg.BufferSize),
		quit:        make(chan struct{}),
		finished:    make(chan struct{}),
		droppedType: make(map[string]uint64),
	}
	go d.forward()
	return d
}

func (d *Dispatcher) forward() {
	defer close(d.finished)

	for {
		// Drain pending critical events before looking at routine ones.
		select {
		case ev := <-d.critical:
			d.deliver(ev)
			continue
		default:
		}

		select {
		case ev := <-d.critical:
			d.deliver(ev)
		case ev := <-d.routine:
			d.deliver(ev)
		case <-d.quit:
			d.flush(d.critical)
			d.flush(d.routine)
			return
		}
	}
}

func (d *Dispatcher) flush(lane chan Event) {
	for {
		select {
		case ev := <-lane:
			d.deliver(ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	ctx := context.Background()
	if d.cfg.SinkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.SinkTimeout)
		defer cancel()
	}
	d.sink.Emit(ctx, ev)
	d.delivered.Add(1)
}

func (d *Dispatcher) isCritical(ev Event) bool {
	return d.cfg.Critical != nil && d.cfg.Critical(ev)
}

// Emit queues ev. A routine event is dropped on a full queue when
// DropIfFull is set. Otherwise, and always for critical events, Emit waits
// for room until ctx ends; an event abandoned that way counts as dropped.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	lane := d.routine
	critical := d.isCritical(ev)
	if critical {
		lane = d.critical
	}

	if d.cfg.DropIfFull && !critical {
		select {
		case lane <- ev:
		case <-d.quit:
		default:
			d.drop(ev)
		}
		return
	}

	select {
	case lane <- ev:
	case <-ctx.Done():
		d.drop(ev)
	case <-d.quit:
	}
}

func (d *Dispatcher) drop(ev Event) {
	d.dropped.Add(1)
	d.mu.Lock()
	d.droppedType[ev.EventType]++
	d.mu.Unlock()
}

// Close stops accepting events, delivers everything already queued and waits
// for the background goroutine.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.quit)
		<-d.finished
	})
}

// Dropped returns how many events were discarded.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// DroppedByType returns the discarded event count per event type.
func (d *Dispatcher) DroppedByType() map[string]uint64 {
	out := map[string]uint64{}
	if d == nil {
		return out
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, v := range d.droppedType {
		out[k] = v
	}
	return out
}

// Delivered returns how many events reached the sink.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
