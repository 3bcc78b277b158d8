package strategy

import (
	"time"

	"basis-sim/internal/config"
	"basis-sim/internal/exec"

	"github.com/shopspring/decimal"
)

type State string

type Event string

const (
	StateFlat State = "FLAT"
	StateOpen State = "OPEN"
)

const (
	EventEnter Event = "ENTER"
	EventExit  Event = "EXIT"
)

type ExitReason string

const (
	ExitBasis       ExitReason = "basis_compression"
	ExitTakeProfit  ExitReason = "take_profit"
	ExitStopLoss    ExitReason = "stop_loss"
	ExitLiquidation ExitReason = "liquidation_gauge"
)

// EquityStop reports whether the reason is one of the equity stops.
func (r ExitReason) EquityStop() bool {
	return r == ExitTakeProfit || r == ExitStopLoss
}

// Params is the engine configuration in decimal form. It is built once and
// never mutated.
type Params struct {
	Symbol              string
	StartUSDT           decimal.Decimal
	AllocFraction       decimal.Decimal
	EntryBasisPct       decimal.Decimal
	ExitBasisPct        decimal.Decimal
	TakeProfitUSDT      decimal.Decimal
	StopLossUSDT        decimal.Decimal
	Leverage            decimal.Decimal
	MMRPct              decimal.Decimal
	LiqWarningPct       decimal.Decimal
	DisableEquityStops  bool
	ExitOnLiquidation   bool
	HaltAfterEquityStop bool
	StaleTimeout        time.Duration
	Costs               exec.Costs
}

func ParamsFromConfig(cfg config.SimConfig) (Params, error) {
	if err := config.ValidateSim(cfg); err != nil {
		return Params{}, err
	}
	return Params{
		Symbol:              cfg.Symbol,
		StartUSDT:           decimal.NewFromFloat(cfg.StartUSDT),
		AllocFraction:       decimal.NewFromFloat(cfg.AllocFraction),
		EntryBasisPct:       decimal.NewFromFloat(cfg.EntryBasisPct),
		ExitBasisPct:        decimal.NewFromFloat(cfg.ExitBasisPct),
		TakeProfitUSDT:      decimal.NewFromFloat(cfg.TakeProfitUSDT),
		StopLossUSDT:        decimal.NewFromFloat(cfg.StopLossUSDT),
		Leverage:            decimal.NewFromFloat(cfg.Leverage),
		MMRPct:              decimal.NewFromFloat(cfg.MMRPct),
		LiqWarningPct:       decimal.NewFromFloat(cfg.LiqWarningPct),
		DisableEquityStops:  cfg.DisableEquityStops,
		ExitOnLiquidation:   cfg.ExitOnLiquidation,
		HaltAfterEquityStop: cfg.HaltAfterEquityStop,
		StaleTimeout:        cfg.StaleTimeout,
		Costs: exec.Costs{
			SpotFeePct:      decimal.NewFromFloat(cfg.SpotTakerFeePct),
			PerpFeePct:      decimal.NewFromFloat(cfg.PerpTakerFeePct),
			SpotSlippageBps: decimal.NewFromFloat(cfg.SpotSlippageBps),
			PerpSlippageBps: decimal.NewFromFloat(cfg.PerpSlippageBps),
		},
	}, nil
}
