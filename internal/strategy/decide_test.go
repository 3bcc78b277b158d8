package strategy

import (
	"testing"

	"basis-sim/internal/config"
	"basis-sim/internal/market"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testParams(t *testing.T) Params {
	t.Helper()
	p, err := ParamsFromConfig(config.SimConfig{
		Symbol:          "ADAUSDT",
		StartUSDT:       100,
		AllocFraction:   0.95,
		EntryBasisPct:   0.6,
		ExitBasisPct:    0.1,
		TakeProfitUSDT:  1,
		StopLossUSDT:    2,
		SpotTakerFeePct: 0.1,
		PerpTakerFeePct: 0.055,
		SpotSlippageBps: 2,
		PerpSlippageBps: 2,
		Leverage:        3,
		MMRPct:          0.5,
		RefreshInterval: 1,
		StaleTimeout:    1,
	})
	require.NoError(t, err)
	return p
}

func sample(basis string) market.BasisSample {
	return market.BasisSample{BasisPct: d(basis)}
}

func TestParamsFromConfigExact(t *testing.T) {
	p := testParams(t)
	assert.True(t, p.EntryBasisPct.Equal(d("0.6")))
	assert.True(t, p.Costs.PerpFeePct.Equal(d("0.055")))
	assert.True(t, p.AllocFraction.Equal(d("0.95")))
}

func TestParamsFromConfigRejectsInvalid(t *testing.T) {
	_, err := ParamsFromConfig(config.SimConfig{Symbol: "X", StartUSDT: 1, AllocFraction: 1, EntryBasisPct: 0.1, ExitBasisPct: 0.2, Leverage: 1, RefreshInterval: 1, StaleTimeout: 1})
	require.Error(t, err)
	_, err = ParamsFromConfig(config.SimConfig{Symbol: "X", StartUSDT: 1, AllocFraction: 1, EntryBasisPct: 0.2, ExitBasisPct: 0.1, Leverage: 0, RefreshInterval: 1, StaleTimeout: 1})
	require.Error(t, err)
}

func TestShouldEnter(t *testing.T) {
	p := testParams(t)
	base := EntryInputs{State: StateFlat, Sample: sample("0.6"), Fresh: true}
	assert.True(t, p.ShouldEnter(base), "basis at threshold enters")

	below := base
	below.Sample = sample("0.5999")
	assert.False(t, p.ShouldEnter(below), "below threshold")

	open := base
	open.State = StateOpen
	assert.False(t, p.ShouldEnter(open), "already open")

	degraded := base
	degraded.Degraded = true
	assert.False(t, p.ShouldEnter(degraded), "degraded")

	halted := base
	halted.Halted = true
	assert.False(t, p.ShouldEnter(halted), "halted")

	stale := base
	stale.Fresh = false
	assert.False(t, p.ShouldEnter(stale), "no fresh sample")
}

func TestEntryQuantity(t *testing.T) {
	p := testParams(t)
	qty, ok := p.EntryQuantity(d("100"), d("0.38"))
	require.True(t, ok)
	assert.True(t, qty.Equal(d("250")), "got %s", qty)

	_, ok = p.EntryQuantity(decimal.Zero, d("0.38"))
	assert.False(t, ok)
	_, ok = p.EntryQuantity(d("-5"), d("0.38"))
	assert.False(t, ok)
}

func TestExitPriorityBasisBeforeTakeProfit(t *testing.T) {
	p := testParams(t)
	reason, ok := p.ExitReason(ExitInputs{
		Sample:    sample("0.05"),
		HasSample: true,
		Equity:    d("150"),
	})
	require.True(t, ok)
	assert.Equal(t, ExitBasis, reason)
}

func TestExitReasons(t *testing.T) {
	p := testParams(t)
	p.ExitOnLiquidation = true
	cases := []struct {
		name string
		in   ExitInputs
		want ExitReason
		ok   bool
	}{
		{"hold", ExitInputs{Sample: sample("0.3"), HasSample: true, Equity: d("100")}, "", false},
		{"take profit", ExitInputs{Sample: sample("0.3"), HasSample: true, Equity: d("101")}, ExitTakeProfit, true},
		{"stop loss", ExitInputs{Sample: sample("0.3"), HasSample: true, Equity: d("98")}, ExitStopLoss, true},
		{"take profit before stop", ExitInputs{Equity: d("101")}, ExitTakeProfit, true},
		{"liquidation", ExitInputs{Sample: sample("0.3"), HasSample: true, Equity: d("100"), PerpMark: d("1.4"), LiqPrice: d("1.33"), HasLiq: true}, ExitLiquidation, true},
		{"liquidation not reached", ExitInputs{Sample: sample("0.3"), HasSample: true, Equity: d("100"), PerpMark: d("1.2"), LiqPrice: d("1.33"), HasLiq: true}, "", false},
	}
	for _, tc := range cases {
		reason, ok := p.ExitReason(tc.in)
		assert.Equal(t, tc.ok, ok, tc.name)
		assert.Equal(t, tc.want, reason, tc.name)
	}
}

func TestZeroStopsAreLive(t *testing.T) {
	p := testParams(t)
	p.TakeProfitUSDT = decimal.Zero
	reason, ok := p.ExitReason(ExitInputs{Sample: sample("0.3"), HasSample: true, Equity: d("100")})
	require.True(t, ok)
	assert.Equal(t, ExitTakeProfit, reason)

	p = testParams(t)
	p.StopLossUSDT = decimal.Zero
	reason, ok = p.ExitReason(ExitInputs{Sample: sample("0.3"), HasSample: true, Equity: d("99.99")})
	require.True(t, ok)
	assert.Equal(t, ExitStopLoss, reason)
}

func TestDisableEquityStops(t *testing.T) {
	p := testParams(t)
	p.DisableEquityStops = true
	for _, equity := range []string{"0", "98", "100", "101", "1000"} {
		_, ok := p.ExitReason(ExitInputs{Sample: sample("0.3"), HasSample: true, Equity: d(equity)})
		assert.False(t, ok, equity)
	}
	reason, ok := p.ExitReason(ExitInputs{Sample: sample("0.05"), HasSample: true, Equity: d("100")})
	require.True(t, ok)
	assert.Equal(t, ExitBasis, reason)
}

func TestLiquidationExitOptIn(t *testing.T) {
	p := testParams(t)
	_, ok := p.ExitReason(ExitInputs{Sample: sample("0.3"), HasSample: true, Equity: d("100"), PerpMark: d("2"), LiqPrice: d("1"), HasLiq: true})
	assert.False(t, ok)
}
