package exec

import (
	"errors"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

var (
	hundred      = decimal.NewFromInt(100)
	bpsPerUnit   = decimal.NewFromInt(10_000)
	errNegCosts  = errors.New("fees and slippage must be >= 0")
	errZeroQuote = errors.New("mid price must be > 0")
)

// Fill is one simulated taker fill against a mid price.
type Fill struct {
	Side         Side
	Mid          decimal.Decimal
	Price        decimal.Decimal
	Quantity     decimal.Decimal
	SlippageCost decimal.Decimal
}

func (f Fill) Notional() decimal.Decimal {
	return f.Price.Mul(f.Quantity)
}

// SimulateFill moves the mid against the trader by slippageBps: buys fill
// higher, sells fill lower.
func SimulateFill(side Side, mid, slippageBps, qty decimal.Decimal) Fill {
	adj := slippageBps.Div(bpsPerUnit)
	price := mid
	switch side {
	case SideBuy:
		price = mid.Mul(decimal.NewFromInt(1).Add(adj))
	case SideSell:
		price = mid.Mul(decimal.NewFromInt(1).Sub(adj))
	}
	return Fill{
		Side:         side,
		Mid:          mid,
		Price:        price,
		Quantity:     qty,
		SlippageCost: price.Sub(mid).Abs().Mul(qty),
	}
}

func Fee(price, qty, feePct decimal.Decimal) decimal.Decimal {
	return price.Mul(qty).Mul(feePct).Div(hundred)
}

// Costs holds the per-venue taker fee (percent) and slippage (bps).
type Costs struct {
	SpotFeePct      decimal.Decimal
	PerpFeePct      decimal.Decimal
	SpotSlippageBps decimal.Decimal
	PerpSlippageBps decimal.Decimal
}

// PairFill is both legs of one hedged open or close. The legs are filled
// against the same sample with no delay between them.
type PairFill struct {
	Spot    Fill
	Perp    Fill
	SpotFee decimal.Decimal
	PerpFee decimal.Decimal
}

func (p PairFill) Fees() decimal.Decimal {
	return p.SpotFee.Add(p.PerpFee)
}

func (p PairFill) Slippage() decimal.Decimal {
	return p.Spot.SlippageCost.Add(p.Perp.SlippageCost)
}

type Simulator struct {
	costs Costs
}

func NewSimulator(costs Costs) (*Simulator, error) {
	if costs.SpotFeePct.IsNegative() || costs.PerpFeePct.IsNegative() ||
		costs.SpotSlippageBps.IsNegative() || costs.PerpSlippageBps.IsNegative() {
		return nil, errNegCosts
	}
	return &Simulator{costs: costs}, nil
}

// Open buys spot and shorts the perp for qty.
func (s *Simulator) Open(spotMid, perpMid, qty decimal.Decimal) (PairFill, error) {
	return s.pair(SideBuy, SideSell, spotMid, perpMid, qty)
}

// Close sells spot and buys the perp back for qty.
func (s *Simulator) Close(spotMid, perpMid, qty decimal.Decimal) (PairFill, error) {
	return s.pair(SideSell, SideBuy, spotMid, perpMid, qty)
}

// CloseFeeEstimate is the fee a close at the given mids would pay.
func (s *Simulator) CloseFeeEstimate(spotMid, perpMid, qty decimal.Decimal) decimal.Decimal {
	return Fee(spotMid, qty, s.costs.SpotFeePct).Add(Fee(perpMid, qty, s.costs.PerpFeePct))
}

func (s *Simulator) pair(spotSide, perpSide Side, spotMid, perpMid, qty decimal.Decimal) (PairFill, error) {
	if !spotMid.IsPositive() || !perpMid.IsPositive() {
		return PairFill{}, errZeroQuote
	}
	spot := SimulateFill(spotSide, spotMid, s.costs.SpotSlippageBps, qty)
	perp := SimulateFill(perpSide, perpMid, s.costs.PerpSlippageBps, qty)
	return PairFill{
		Spot:    spot,
		Perp:    perp,
		SpotFee: Fee(spot.Price, qty, s.costs.SpotFeePct),
		PerpFee: Fee(perp.Price, qty, s.costs.PerpFeePct),
	}, nil
}
