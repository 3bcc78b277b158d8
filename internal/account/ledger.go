package account

import (
	"errors"
	"time"

	"basis-sim/internal/exec"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrPositionOpen        = errors.New("position already open")
	ErrNoPosition          = errors.New("no open position")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrQuantityMismatch    = errors.New("close quantity does not match position")
)

// Position is one hedged trade: long Quantity spot, short Quantity perp.
// Entry prices are the sampled mids; what the fills lost to slippage is
// carried in EntrySlippageCost.
type Position struct {
	Quantity          decimal.Decimal `json:"quantity"`
	EntrySpotPrice    decimal.Decimal `json:"entry_spot_price"`
	EntryPerpPrice    decimal.Decimal `json:"entry_perp_price"`
	SpotCost          decimal.Decimal `json:"spot_cost"`
	EntryTime         time.Time       `json:"entry_time"`
	EntryFees         decimal.Decimal `json:"entry_fees"`
	EntrySlippageCost decimal.Decimal `json:"entry_slippage_cost"`
	FundingAccrued    decimal.Decimal `json:"funding_accrued"`
}

func (p Position) IsOpen() bool {
	return p.Quantity.IsPositive()
}

// Legs returns the spot and short-perp PnL of the position at the given mids.
func (p Position) Legs(spotMid, perpMid decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	spot := p.Quantity.Mul(spotMid.Sub(p.EntrySpotPrice))
	perp := p.Quantity.Mul(p.EntryPerpPrice.Sub(perpMid))
	return spot, perp
}

// Trade is a closed round trip. Net is Gross less every fee and slippage
// cost paid on both legs, entry and exit.
type Trade struct {
	ID             string          `json:"id"`
	Reason         string          `json:"reason"`
	Quantity       decimal.Decimal `json:"quantity"`
	EntrySpotPrice decimal.Decimal `json:"entry_spot_price"`
	EntryPerpPrice decimal.Decimal `json:"entry_perp_price"`
	ExitSpotPrice  decimal.Decimal `json:"exit_spot_price"`
	ExitPerpPrice  decimal.Decimal `json:"exit_perp_price"`
	EntryTime      time.Time       `json:"entry_time"`
	ExitTime       time.Time       `json:"exit_time"`
	SpotPnL        decimal.Decimal `json:"spot_pnl"`
	PerpPnL        decimal.Decimal `json:"perp_pnl"`
	Gross          decimal.Decimal `json:"gross"`
	Fees           decimal.Decimal `json:"fees"`
	Slippage       decimal.Decimal `json:"slippage"`
	Funding        decimal.Decimal `json:"funding"`
	Net            decimal.Decimal `json:"net"`
}

type Totals struct {
	Balance        decimal.Decimal
	RealizedPnL    decimal.Decimal
	FeesPaid       decimal.Decimal
	FundingAccrued decimal.Decimal
	Trades         int
}

// Ledger is the simulated USDT account. It is owned by the engine loop and is
// not safe for concurrent use.
type Ledger struct {
	balance        decimal.Decimal
	realized       decimal.Decimal
	feesPaid       decimal.Decimal
	fundingAccrued decimal.Decimal
	position       Position
	trades         []Trade
	newID          func() string
}

func NewLedger(startBalance decimal.Decimal) *Ledger {
	return &Ledger{balance: startBalance, newID: uuid.NewString}
}

func (l *Ledger) Totals() Totals {
	return Totals{
		Balance:        l.balance,
		RealizedPnL:    l.realized,
		FeesPaid:       l.feesPaid,
		FundingAccrued: l.fundingAccrued,
		Trades:         len(l.trades),
	}
}

func (l *Ledger) Balance() decimal.Decimal {
	return l.balance
}

func (l *Ledger) Position() (Position, bool) {
	return l.position, l.position.IsOpen()
}

func (l *Ledger) Trades() []Trade {
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// UnrealizedPnL marks both legs at the mids, net of the slippage already
// paid on entry. It is zero while flat.
func (l *Ledger) UnrealizedPnL(spotMid, perpMid decimal.Decimal) decimal.Decimal {
	if !l.position.IsOpen() {
		return decimal.Zero
	}
	spot, perp := l.position.Legs(spotMid, perpMid)
	return spot.Add(perp).Sub(l.position.EntrySlippageCost)
}

// Equity is balance plus the cash tied up in spot, marked to market, less
// the fees a close at the mids would cost.
func (l *Ledger) Equity(spotMid, perpMid, closeFeeEstimate decimal.Decimal) decimal.Decimal {
	if !l.position.IsOpen() {
		return l.balance
	}
	return l.balance.
		Add(l.position.SpotCost).
		Add(l.UnrealizedPnL(spotMid, perpMid)).
		Sub(closeFeeEstimate)
}

// CanAfford reports whether the ledger can pay for the spot leg plus fees.
func (l *Ledger) CanAfford(fill exec.PairFill) bool {
	return !fill.Spot.Notional().Add(fill.Fees()).GreaterThan(l.balance)
}

func (l *Ledger) ApplyOpen(fill exec.PairFill, at time.Time) error {
	if l.position.IsOpen() {
		return ErrPositionOpen
	}
	if !fill.Spot.Quantity.IsPositive() || !fill.Spot.Quantity.Equal(fill.Perp.Quantity) {
		return ErrQuantityMismatch
	}
	if !l.CanAfford(fill) {
		return ErrInsufficientBalance
	}
	cost := fill.Spot.Notional()
	fees := fill.Fees()
	l.balance = l.balance.Sub(cost).Sub(fees)
	l.feesPaid = l.feesPaid.Add(fees)
	l.position = Position{
		Quantity:          fill.Spot.Quantity,
		EntrySpotPrice:    fill.Spot.Mid,
		EntryPerpPrice:    fill.Perp.Mid,
		SpotCost:          cost,
		EntryTime:         at,
		EntryFees:         fees,
		EntrySlippageCost: fill.Slippage(),
	}
	return nil
}

func (l *Ledger) ApplyClose(fill exec.PairFill, at time.Time, reason string) (Trade, error) {
	pos := l.position
	if !pos.IsOpen() {
		return Trade{}, ErrNoPosition
	}
	if !fill.Spot.Quantity.Equal(pos.Quantity) || !fill.Perp.Quantity.Equal(pos.Quantity) {
		return Trade{}, ErrQuantityMismatch
	}
	spotPnL, perpPnL := pos.Legs(fill.Spot.Mid, fill.Perp.Mid)
	gross := spotPnL.Add(perpPnL)
	exitFees := fill.Fees()
	slippage := pos.EntrySlippageCost.Add(fill.Slippage())
	realized := gross.Sub(exitFees).Sub(slippage)

	l.balance = l.balance.Add(pos.SpotCost).Add(realized)
	l.realized = l.realized.Add(realized)
	l.feesPaid = l.feesPaid.Add(exitFees)

	fees := pos.EntryFees.Add(exitFees)
	trade := Trade{
		ID:             l.newID(),
		Reason:         reason,
		Quantity:       pos.Quantity,
		EntrySpotPrice: pos.EntrySpotPrice,
		EntryPerpPrice: pos.EntryPerpPrice,
		ExitSpotPrice:  fill.Spot.Mid,
		ExitPerpPrice:  fill.Perp.Mid,
		EntryTime:      pos.EntryTime,
		ExitTime:       at,
		SpotPnL:        spotPnL,
		PerpPnL:        perpPnL,
		Gross:          gross,
		Fees:           fees,
		Slippage:       slippage,
		Funding:        pos.FundingAccrued,
		Net:            gross.Sub(fees).Sub(slippage),
	}
	l.trades = append(l.trades, trade)
	l.position = Position{}
	return trade, nil
}

// ApplyFunding settles one funding payment on the short perp leg: a positive
// rate credits the account, a negative rate debits it.
func (l *Ledger) ApplyFunding(rate, qty, price decimal.Decimal) decimal.Decimal {
	payment := qty.Mul(price).Mul(rate)
	l.balance = l.balance.Add(payment)
	l.fundingAccrued = l.fundingAccrued.Add(payment)
	if l.position.IsOpen() {
		l.position.FundingAccrued = l.position.FundingAccrued.Add(payment)
	}
	return payment
}
