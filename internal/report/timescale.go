package report

import (
	"context"

	"basis-sim/internal/engine"
	"basis-sim/internal/timescale"
)

type timescaleQueue interface {
	EnqueueSnapshot(timescale.SnapshotRow)
	EnqueueTrade(timescale.TradeRow)
}

// Timescale queues rows on the writer; the writer does the I/O on its own
// goroutine.
type Timescale struct {
	w timescaleQueue
}

func NewTimescale(w timescaleQueue) *Timescale {
	return &Timescale{w: w}
}

func (t *Timescale) Name() string { return "timescale" }

func (t *Timescale) Report(_ context.Context, snap engine.Snapshot) error {
	t.w.EnqueueSnapshot(timescale.SnapshotRowFrom(snap))
	if snap.ClosedTrade != nil {
		t.w.EnqueueTrade(timescale.TradeRowFrom(snap.Symbol, *snap.ClosedTrade))
	}
	return nil
}
