package exec

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSimulateFillDirection(t *testing.T) {
	buy := SimulateFill(SideBuy, d("100"), d("5"), d("2"))
	if !buy.Price.Equal(d("100.05")) {
		t.Fatalf("expected buy at 100.05, got %s", buy.Price)
	}
	if !buy.SlippageCost.Equal(d("0.1")) {
		t.Fatalf("expected buy slippage 0.1, got %s", buy.SlippageCost)
	}
	sell := SimulateFill(SideSell, d("100"), d("5"), d("2"))
	if !sell.Price.Equal(d("99.95")) {
		t.Fatalf("expected sell at 99.95, got %s", sell.Price)
	}
	if !sell.SlippageCost.Equal(d("0.1")) {
		t.Fatalf("expected sell slippage 0.1, got %s", sell.SlippageCost)
	}
}

func TestSimulateFillNeverImproves(t *testing.T) {
	for _, bps := range []string{"0", "0.5", "3", "25"} {
		buy := SimulateFill(SideBuy, d("0.3640"), d(bps), d("10"))
		if buy.Price.LessThan(buy.Mid) {
			t.Fatalf("bps %s: buy improved to %s", bps, buy.Price)
		}
		sell := SimulateFill(SideSell, d("0.3640"), d(bps), d("10"))
		if sell.Price.GreaterThan(sell.Mid) {
			t.Fatalf("bps %s: sell improved to %s", bps, sell.Price)
		}
	}
}

func TestFee(t *testing.T) {
	if got := Fee(d("0.3640"), d("10000"), d("0.1")); !got.Equal(d("3.64")) {
		t.Fatalf("expected fee 3.64, got %s", got)
	}
	if got := Fee(d("0.3640"), d("10000"), decimal.Zero); !got.IsZero() {
		t.Fatalf("expected zero fee, got %s", got)
	}
}

func TestSimulatorOpenClose(t *testing.T) {
	sim, err := NewSimulator(Costs{
		SpotFeePct:      d("0.1"),
		PerpFeePct:      d("0.055"),
		SpotSlippageBps: d("2"),
		PerpSlippageBps: d("1"),
	})
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	open, err := sim.Open(d("100"), d("101"), d("1"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if open.Spot.Side != SideBuy || open.Perp.Side != SideSell {
		t.Fatalf("unexpected open sides %s/%s", open.Spot.Side, open.Perp.Side)
	}
	if !open.Spot.Price.Equal(d("100.02")) || !open.Perp.Price.Equal(d("100.9899")) {
		t.Fatalf("unexpected open prices %s/%s", open.Spot.Price, open.Perp.Price)
	}
	if !open.Fees().Equal(open.SpotFee.Add(open.PerpFee)) || !open.Fees().IsPositive() {
		t.Fatalf("unexpected fees %s", open.Fees())
	}
	exit, err := sim.Close(d("100"), d("101"), d("1"))
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if exit.Spot.Side != SideSell || exit.Perp.Side != SideBuy {
		t.Fatalf("unexpected close sides %s/%s", exit.Spot.Side, exit.Perp.Side)
	}
	if !exit.Slippage().Equal(d("0.0301")) {
		t.Fatalf("expected slippage 0.0301, got %s", exit.Slippage())
	}
	if est := sim.CloseFeeEstimate(d("100"), d("101"), d("1")); !est.Equal(d("0.15555")) {
		t.Fatalf("expected close fee estimate 0.15555, got %s", est)
	}
}

func TestSimulatorRejects(t *testing.T) {
	if _, err := NewSimulator(Costs{SpotFeePct: d("-0.1")}); err == nil {
		t.Fatalf("expected error for negative fee")
	}
	sim, err := NewSimulator(Costs{})
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	if _, err := sim.Open(decimal.Zero, d("1"), d("1")); err == nil {
		t.Fatalf("expected error for zero spot mid")
	}
}
