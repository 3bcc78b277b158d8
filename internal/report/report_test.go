package report

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"basis-sim/internal/engine"
	"basis-sim/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	name string
	err  error

	mu    sync.Mutex
	snaps []engine.Snapshot
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Report(_ context.Context, snap engine.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
	return r.err
}

func (r *recordingSink) causes() []engine.Cause {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]engine.Cause, 0, len(r.snaps))
	for _, s := range r.snaps {
		out = append(out, s.Cause)
	}
	return out
}

type countingCounter struct{ n atomic.Int64 }

func (c *countingCounter) Inc() { c.n.Add(1) }

func TestDispatcherDropsWhenFull(t *testing.T) {
	m := metrics.NewNoop()
	dropped := &countingCounter{}
	m.SnapshotsDropped = dropped
	d := NewDispatcher(2, zap.NewNop(), m)

	for i := 0; i < 5; i++ {
		d.Publish(engine.Snapshot{Cause: engine.CauseTick})
	}
	assert.Equal(t, uint64(3), d.Dropped())
	assert.Equal(t, int64(3), dropped.n.Load())
}

func TestDispatcherDeliversToEverySink(t *testing.T) {
	failing := &recordingSink{name: "failing", err: errors.New("boom")}
	ok := &recordingSink{name: "ok"}
	d := NewDispatcher(8, zap.NewNop(), nil, failing, ok)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()

	d.Publish(engine.Snapshot{Cause: engine.CauseEnter})
	d.Publish(engine.Snapshot{Cause: engine.CauseTick})
	require.Eventually(t, func() bool { return len(ok.causes()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []engine.Cause{engine.CauseEnter, engine.CauseTick}, ok.causes())
	assert.Equal(t, ok.causes(), failing.causes())
}

func TestDispatcherDrainsOnShutdown(t *testing.T) {
	sink := &recordingSink{name: "sink"}
	d := NewDispatcher(8, zap.NewNop(), nil, sink)
	d.Publish(engine.Snapshot{Cause: engine.CauseExit})
	d.Publish(engine.Snapshot{Cause: engine.CauseTick})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	// Either Run picked the snapshots up before seeing the cancel or drain
	// delivered them; both must arrive in order.
	assert.Equal(t, []engine.Cause{engine.CauseExit, engine.CauseTick}, sink.causes())
}
