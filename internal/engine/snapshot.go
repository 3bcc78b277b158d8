package engine

import (
	"time"

	"basis-sim/internal/account"
	"basis-sim/internal/strategy"

	"github.com/shopspring/decimal"
)

// Cause is why a snapshot was emitted.
type Cause string

const (
	CauseTick     Cause = "tick"
	CauseEnter    Cause = "enter"
	CauseExit     Cause = "exit"
	CauseFunding  Cause = "funding"
	CauseDegraded Cause = "degraded"
	CauseRestored Cause = "restored"
)

type QuoteView struct {
	Mid        decimal.Decimal `json:"mid"`
	ObservedAt time.Time       `json:"observed_at"`
	Known      bool            `json:"known"`
	Fresh      bool            `json:"fresh"`
}

// Snapshot is a read-only copy of engine state handed to reporting.
type Snapshot struct {
	Symbol              string            `json:"symbol"`
	Cause               Cause             `json:"cause"`
	At                  time.Time         `json:"at"`
	Spot                QuoteView         `json:"spot"`
	Perp                QuoteView         `json:"perp"`
	BasisPct            decimal.Decimal   `json:"basis_pct"`
	HasBasis            bool              `json:"has_basis"`
	State               strategy.State    `json:"state"`
	Position            *account.Position `json:"position,omitempty"`
	Balance             decimal.Decimal   `json:"balance"`
	Equity              decimal.Decimal   `json:"equity"`
	UnrealizedPnL       decimal.Decimal   `json:"unrealized_pnl"`
	RealizedPnLTotal    decimal.Decimal   `json:"realized_pnl_total"`
	FeesPaidTotal       decimal.Decimal   `json:"fees_paid_total"`
	FundingAccruedTotal decimal.Decimal   `json:"funding_accrued_total"`
	FundingRate         decimal.Decimal   `json:"funding_rate"`
	HasFunding          bool              `json:"has_funding"`
	NextFundingAt       time.Time         `json:"next_funding_at"`
	LiqPrice            decimal.Decimal   `json:"liq_price"`
	LiqDistancePct      decimal.Decimal   `json:"liq_distance_pct"`
	LiqAtRisk           bool              `json:"liq_at_risk"`
	HasLiq              bool              `json:"has_liq"`
	Trades              int               `json:"trades"`
	ClosedTrade         *account.Trade    `json:"closed_trade,omitempty"`
	LastAction          string            `json:"last_action"`
	Note                string            `json:"note"`
	Degraded            bool              `json:"degraded"`
	Halted              bool              `json:"halted"`
	// FeedChanged is set when Degraded flipped in this step, even if an entry,
	// exit or funding settlement took the Cause.
	FeedChanged bool `json:"feed_changed"`
}
