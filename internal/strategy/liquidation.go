package strategy

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// LiquidationGauge approximates where the short perp leg would be liquidated.
// It is a display aid, not a margin model.
type LiquidationGauge struct {
	leverage decimal.Decimal
	mmrPct   decimal.Decimal
	warnPct  decimal.Decimal
}

type LiquidationReading struct {
	LiqPrice    decimal.Decimal
	DistancePct decimal.Decimal
	AtRisk      bool
}

func NewLiquidationGauge(leverage, mmrPct, warnPct decimal.Decimal) (*LiquidationGauge, error) {
	if !leverage.IsPositive() {
		return nil, errors.New("leverage must be > 0")
	}
	if mmrPct.IsNegative() || mmrPct.GreaterThanOrEqual(hundred) {
		return nil, errors.New("maintenance margin rate must be in [0,100)")
	}
	if warnPct.IsNegative() {
		return nil, errors.New("liquidation warning must be >= 0")
	}
	return &LiquidationGauge{leverage: leverage, mmrPct: mmrPct, warnPct: warnPct}, nil
}

// LiqPrice is entry * (1 + 1/leverage - mmr/100).
func (g *LiquidationGauge) LiqPrice(entryPerp decimal.Decimal) decimal.Decimal {
	factor := one.Add(one.Div(g.leverage)).Sub(g.mmrPct.Div(hundred))
	return entryPerp.Mul(factor)
}

// DistancePct is how far the mark can rise before reaching liq, in percent of
// the mark. It is false for a non-positive mark.
func (g *LiquidationGauge) DistancePct(liq, mark decimal.Decimal) (decimal.Decimal, bool) {
	if !mark.IsPositive() {
		return decimal.Zero, false
	}
	return liq.Sub(mark).Div(mark).Mul(hundred), true
}

func (g *LiquidationGauge) Read(entryPerp, mark decimal.Decimal) (LiquidationReading, bool) {
	liq := g.LiqPrice(entryPerp)
	dist, ok := g.DistancePct(liq, mark)
	if !ok {
		return LiquidationReading{LiqPrice: liq}, false
	}
	return LiquidationReading{
		LiqPrice:    liq,
		DistancePct: dist,
		AtRisk:      dist.LessThan(g.warnPct),
	}, true
}
