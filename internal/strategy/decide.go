package strategy

import (
	"basis-sim/internal/market"

	"github.com/shopspring/decimal"
)

// EntryInputs is what the entry rule looks at while flat.
type EntryInputs struct {
	State    State
	Sample   market.BasisSample
	Fresh    bool
	Degraded bool
	Halted   bool
}

// ExitInputs is what the exit rules look at while open. Sample may be the last
// known one when the feed is degraded.
type ExitInputs struct {
	Sample    market.BasisSample
	HasSample bool
	Equity    decimal.Decimal
	PerpMark  decimal.Decimal
	LiqPrice  decimal.Decimal
	HasLiq    bool
}

func (p Params) ShouldEnter(in EntryInputs) bool {
	if in.State != StateFlat || !in.Fresh || in.Degraded || in.Halted {
		return false
	}
	return in.Sample.BasisPct.GreaterThanOrEqual(p.EntryBasisPct)
}

// EntryQuantity sizes a new position from the free balance. It is false when
// there is nothing to deploy.
func (p Params) EntryQuantity(balance, spotMid decimal.Decimal) (decimal.Decimal, bool) {
	notional := balance.Mul(p.AllocFraction)
	if !notional.IsPositive() || !spotMid.IsPositive() {
		return decimal.Zero, false
	}
	return notional.Div(spotMid), true
}

// ExitReason applies the exit rules in priority order; the first that holds
// wins. Zero thresholds are live: a zero take-profit fires at break-even.
// Only DisableEquityStops turns both equity stops off.
func (p Params) ExitReason(in ExitInputs) (ExitReason, bool) {
	if in.HasSample && in.Sample.BasisPct.LessThanOrEqual(p.ExitBasisPct) {
		return ExitBasis, true
	}
	if !p.DisableEquityStops {
		if in.Equity.GreaterThanOrEqual(p.StartUSDT.Add(p.TakeProfitUSDT)) {
			return ExitTakeProfit, true
		}
		if in.Equity.LessThanOrEqual(p.StartUSDT.Sub(p.StopLossUSDT)) {
			return ExitStopLoss, true
		}
	}
	if p.ExitOnLiquidation && in.HasLiq && in.PerpMark.GreaterThanOrEqual(in.LiqPrice) {
		return ExitLiquidation, true
	}
	return "", false
}
