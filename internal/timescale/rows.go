package timescale

import (
	"time"

	"basis-sim/internal/account"
	"basis-sim/internal/engine"

	"github.com/shopspring/decimal"
)

// Numeric columns are sent as decimal strings so NUMERIC keeps the exact
// engine values. A nil pointer is written as NULL.
type SnapshotRow struct {
	Time           time.Time
	Symbol         string
	Cause          string
	State          string
	SpotMid        *string
	PerpMid        *string
	BasisPct       *string
	Balance        string
	Equity         string
	UnrealizedPnL  string
	RealizedPnL    string
	FeesPaid       string
	FundingAccrued string
	FundingRate    *string
	LiqDistancePct *string
	PositionQty    string
	Degraded       bool
	Halted         bool
}

type TradeRow struct {
	ID        string
	Symbol    string
	Reason    string
	EntryTime time.Time
	ExitTime  time.Time
	Quantity  string
	EntrySpot string
	EntryPerp string
	ExitSpot  string
	ExitPerp  string
	Gross     string
	Fees      string
	Slippage  string
	Funding   string
	Net       string
}

func optional(v decimal.Decimal, ok bool) *string {
	if !ok {
		return nil
	}
	s := v.String()
	return &s
}

func SnapshotRowFrom(s engine.Snapshot) SnapshotRow {
	qty := decimal.Zero
	if s.Position != nil {
		qty = s.Position.Quantity
	}
	return SnapshotRow{
		Time:           s.At,
		Symbol:         s.Symbol,
		Cause:          string(s.Cause),
		State:          string(s.State),
		SpotMid:        optional(s.Spot.Mid, s.Spot.Known),
		PerpMid:        optional(s.Perp.Mid, s.Perp.Known),
		BasisPct:       optional(s.BasisPct, s.HasBasis),
		Balance:        s.Balance.String(),
		Equity:         s.Equity.String(),
		UnrealizedPnL:  s.UnrealizedPnL.String(),
		RealizedPnL:    s.RealizedPnLTotal.String(),
		FeesPaid:       s.FeesPaidTotal.String(),
		FundingAccrued: s.FundingAccruedTotal.String(),
		FundingRate:    optional(s.FundingRate, s.HasFunding),
		LiqDistancePct: optional(s.LiqDistancePct, s.HasLiq),
		PositionQty:    qty.String(),
		Degraded:       s.Degraded,
		Halted:         s.Halted,
	}
}

func TradeRowFrom(symbol string, t account.Trade) TradeRow {
	return TradeRow{
		ID:        t.ID,
		Symbol:    symbol,
		Reason:    t.Reason,
		EntryTime: t.EntryTime,
		ExitTime:  t.ExitTime,
		Quantity:  t.Quantity.String(),
		EntrySpot: t.EntrySpotPrice.String(),
		EntryPerp: t.EntryPerpPrice.String(),
		ExitSpot:  t.ExitSpotPrice.String(),
		ExitPerp:  t.ExitPerpPrice.String(),
		Gross:     t.Gross.String(),
		Fees:      t.Fees.String(),
		Slippage:  t.Slippage.String(),
		Funding:   t.Funding.String(),
		Net:       t.Net.String(),
	}
}

func (r SnapshotRow) args() []any {
	return []any{
		r.Time, r.Symbol, r.Cause, r.State, r.SpotMid, r.PerpMid, r.BasisPct, r.Balance, r.Equity,
		r.UnrealizedPnL, r.RealizedPnL, r.FeesPaid, r.FundingAccrued, r.FundingRate, r.LiqDistancePct,
		r.PositionQty, r.Degraded, r.Halted,
	}
}

func (r TradeRow) args() []any {
	return []any{
		r.ID, r.Symbol, r.Reason, r.EntryTime, r.ExitTime, r.Quantity, r.EntrySpot, r.EntryPerp,
		r.ExitSpot, r.ExitPerp, r.Gross, r.Fees, r.Slippage, r.Funding, r.Net,
	}
}
