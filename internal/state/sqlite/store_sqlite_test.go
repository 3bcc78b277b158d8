package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"basis-sim/internal/account"
	"basis-sim/internal/state"

	"github.com/shopspring/decimal"
)

var (
	_ state.Store   = (*Store)(nil)
	_ state.Journal = (*Store)(nil)
)

func TestStoreRoundTrip(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Set(ctx, "key", "value"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := store.Set(ctx, "key", "value2"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	val, ok, err := store.Get(ctx, "key")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !ok || val != "value2" {
		t.Fatalf("unexpected value: %v (ok=%v)", val, ok)
	}
	if err := store.Delete(ctx, "key"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	_, ok, err = store.Get(ctx, "key")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if ok {
		t.Fatalf("expected key to be deleted")
	}
}

func sampleTrade(id string, exit time.Time) account.Trade {
	return account.Trade{
		ID:             id,
		Reason:         "basis_compression",
		Quantity:       decimal.NewFromInt(10000),
		EntrySpotPrice: decimal.RequireFromString("0.3640"),
		EntryPerpPrice: decimal.RequireFromString("0.3665"),
		ExitSpotPrice:  decimal.RequireFromString("0.3660"),
		ExitPerpPrice:  decimal.RequireFromString("0.3673"),
		EntryTime:      exit.Add(-time.Hour),
		ExitTime:       exit,
		SpotPnL:        decimal.NewFromInt(20),
		PerpPnL:        decimal.NewFromInt(-8),
		Gross:          decimal.NewFromInt(12),
		Fees:           decimal.Zero,
		Slippage:       decimal.Zero,
		Funding:        decimal.RequireFromString("0.364"),
		Net:            decimal.NewFromInt(12),
	}
}

func TestTradeJournal(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	first := sampleTrade("a", base)
	second := sampleTrade("b", base.Add(time.Hour))
	for _, tr := range []account.Trade{first, second, first} {
		if err := store.AppendTrade(ctx, "adausdt", tr); err != nil {
			t.Fatalf("append trade %s: %v", tr.ID, err)
		}
	}
	if err := store.AppendTrade(ctx, "ADAUSDT", account.Trade{}); err == nil {
		t.Fatalf("expected error for trade without id")
	}

	trades, err := store.RecentTrades(ctx, "ADAUSDT", 10)
	if err != nil {
		t.Fatalf("recent trades: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if trades[0].ID != "b" || trades[1].ID != "a" {
		t.Fatalf("expected newest first, got %s,%s", trades[0].ID, trades[1].ID)
	}
	got := trades[1]
	if !got.Net.Equal(first.Net) || !got.Funding.Equal(first.Funding) || !got.EntrySpotPrice.Equal(first.EntrySpotPrice) {
		t.Fatalf("decimal fields not preserved: %#v", got)
	}
	if !got.ExitTime.Equal(first.ExitTime) || !got.EntryTime.Equal(first.EntryTime) {
		t.Fatalf("times not preserved: %v %v", got.EntryTime, got.ExitTime)
	}

	other, err := store.RecentTrades(ctx, "BTCUSDT", 10)
	if err != nil || len(other) != 0 {
		t.Fatalf("expected no trades for other symbol, got %d err=%v", len(other), err)
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store, err := New(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	if err := store.Set(context.Background(), "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
}
