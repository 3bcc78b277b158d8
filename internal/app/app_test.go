package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"basis-sim/internal/config"
	"basis-sim/internal/engine"
	"basis-sim/internal/market"
	"basis-sim/internal/report"
	"basis-sim/internal/state"
	"basis-sim/internal/state/sqlite"
	"basis-sim/internal/strategy"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type scriptedFeed struct {
	events []engine.Event
}

func (f *scriptedFeed) Run(ctx context.Context, out chan<- engine.Event) error {
	for _, ev := range f.events {
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

type causeSink struct {
	causes chan engine.Cause
}

func (c *causeSink) Name() string { return "causes" }

func (c *causeSink) Report(_ context.Context, snap engine.Snapshot) error {
	select {
	case c.causes <- snap.Cause:
	default:
	}
	return nil
}

func loadTestConfig(t *testing.T, dbPath string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "" +
		"sim:\n" +
		"  symbol: ADAUSDT\n" +
		"  start_usdt: 100\n" +
		"  refresh_interval: 10ms\n" +
		"state:\n" +
		"  sqlite_path: " + dbPath + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func TestNewRejectsInvalidSim(t *testing.T) {
	cfg := loadTestConfig(t, filepath.Join(t.TempDir(), "state.db"))
	cfg.Sim.Leverage = 0
	if _, err := New(cfg, zap.NewNop()); err == nil {
		t.Fatalf("expected error for invalid sim config")
	}
}

func TestRunEntersAndPersists(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", "state.db")
	cfg := loadTestConfig(t, dbPath)
	a, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	now := time.Now().UTC()
	a.feed = &scriptedFeed{events: []engine.Event{
		market.QuoteUpdate{Venue: market.VenueSpot, Mid: decimal.RequireFromString("0.3640"), ObservedAt: now},
		market.QuoteUpdate{Venue: market.VenuePerp, Mid: decimal.RequireFromString("0.3665"), ObservedAt: now},
	}}
	sink := &causeSink{causes: make(chan engine.Cause, 64)}
	a.dispatcher = report.NewDispatcher(64, zap.NewNop(), nil, report.NewStore(a.store, a.store, 1), sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.After(3 * time.Second)
	for entered := false; !entered; {
		select {
		case c := <-sink.causes:
			entered = c == engine.CauseEnter
		case <-deadline:
			t.Fatalf("timed out waiting for entry")
		}
	}
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("run did not stop")
	}

	store, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer store.Close()
	snap, ok, err := state.LoadSnapshot(context.Background(), store, "ADAUSDT")
	if err != nil || !ok {
		t.Fatalf("expected saved snapshot, ok=%v err=%v", ok, err)
	}
	if snap.State != strategy.StateOpen || snap.Position == nil {
		t.Fatalf("expected open position saved, got %s", snap.State)
	}
	if !snap.Position.EntrySpotPrice.Equal(decimal.RequireFromString("0.364")) {
		t.Fatalf("unexpected entry spot price %s", snap.Position.EntrySpotPrice)
	}
}
