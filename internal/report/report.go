package report

import (
	"context"
	"sync/atomic"

	"basis-sim/internal/engine"
	"basis-sim/internal/metrics"

	"go.uber.org/zap"
)

// Sink consumes snapshots off the engine loop. A failing sink is logged and
// skipped; it never stops the others.
type Sink interface {
	Name() string
	Report(ctx context.Context, snap engine.Snapshot) error
}

// Dispatcher hands snapshots from the engine to the sinks through a bounded
// queue. Publish never blocks: when the queue is full the snapshot is
// dropped.
type Dispatcher struct {
	queue   chan engine.Snapshot
	sinks   []Sink
	log     *zap.Logger
	metrics *metrics.Metrics
	dropped atomic.Uint64
}

func NewDispatcher(queueSize int, log *zap.Logger, m *metrics.Metrics, sinks ...Sink) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Dispatcher{
		queue:   make(chan engine.Snapshot, queueSize),
		sinks:   sinks,
		log:     log,
		metrics: m,
	}
}

func (d *Dispatcher) Publish(snap engine.Snapshot) {
	select {
	case d.queue <- snap:
	default:
		d.metrics.SnapshotsDropped.Inc()
		if d.dropped.Add(1) == 1 {
			d.log.Warn("report queue full, dropping snapshots", zap.String("cause", string(snap.Cause)))
		}
	}
}

func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Run delivers queued snapshots until ctx is done. Whatever is still queued
// at that point is delivered with a background context so the last position
// change is not lost.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case snap := <-d.queue:
			d.deliver(ctx, snap)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case snap := <-d.queue:
			d.deliver(context.Background(), snap)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, snap engine.Snapshot) {
	for _, sink := range d.sinks {
		if err := sink.Report(ctx, snap); err != nil {
			d.log.Warn("report sink failed",
				zap.String("sink", sink.Name()),
				zap.String("cause", string(snap.Cause)),
				zap.Error(err),
			)
		}
	}
}

var _ engine.Publisher = (*Dispatcher)(nil)
