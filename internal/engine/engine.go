package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"basis-sim/internal/account"
	"basis-sim/internal/exec"
	"basis-sim/internal/market"
	"basis-sim/internal/metrics"
	"basis-sim/internal/strategy"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Publisher receives snapshots from the engine loop. Implementations must not
// block.
type Publisher interface {
	Publish(Snapshot)
}

// Engine owns the quote store, ledger and position state. All of its state is
// touched only from Handle, so a single goroutine must drive it.
type Engine struct {
	params  strategy.Params
	log     *zap.Logger
	metrics *metrics.Metrics

	store   *market.QuoteStore
	sim     *exec.Simulator
	ledger  *account.Ledger
	gauge   *strategy.LiquidationGauge
	machine *strategy.StateMachine
	funding account.FundingSchedule

	sample     market.BasisSample
	hasSample  bool
	degraded   bool
	halted     bool
	now        time.Time
	lastAction string
	note       string
}

func New(params strategy.Params, log *zap.Logger, m *metrics.Metrics) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	if !params.StartUSDT.IsPositive() {
		return nil, errors.New("start balance must be > 0")
	}
	if !params.AllocFraction.IsPositive() || params.AllocFraction.GreaterThan(decimal.NewFromInt(1)) {
		return nil, errors.New("allocation fraction must be in (0,1]")
	}
	if !params.EntryBasisPct.GreaterThan(params.ExitBasisPct) {
		return nil, errors.New("entry basis must be > exit basis")
	}
	if params.TakeProfitUSDT.IsNegative() || params.StopLossUSDT.IsNegative() {
		return nil, errors.New("take profit and stop loss must be >= 0")
	}
	if params.StaleTimeout <= 0 {
		return nil, errors.New("stale timeout must be > 0")
	}
	sim, err := exec.NewSimulator(params.Costs)
	if err != nil {
		return nil, err
	}
	gauge, err := strategy.NewLiquidationGauge(params.Leverage, params.MMRPct, params.LiqWarningPct)
	if err != nil {
		return nil, err
	}
	m.Degraded.Set(1)
	return &Engine{
		params:     params,
		log:        log,
		metrics:    m,
		store:      market.NewQuoteStore(params.StaleTimeout),
		sim:        sim,
		ledger:     account.NewLedger(params.StartUSDT),
		gauge:      gauge,
		machine:    strategy.NewStateMachine(),
		degraded:   true,
		lastAction: "waiting for quotes",
	}, nil
}

// Run consumes events until ctx is done or the channel is closed. An open
// position is left as it is on shutdown.
func (e *Engine) Run(ctx context.Context, events <-chan Event, pub Publisher) error {
	for {
		select {
		case <-ctx.Done():
			e.log.Info("engine stopped", zap.String("state", string(e.machine.State)))
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			snap, emit := e.Handle(ev)
			if emit && pub != nil {
				pub.Publish(snap)
			}
		}
	}
}

// Handle applies one event and reports whether the resulting snapshot should
// be published: on every tick and on every position, funding or feed-health
// transition.
func (e *Engine) Handle(ev Event) (Snapshot, bool) {
	if at := ev.EventTime(); at.After(e.now) {
		e.now = at
	}
	now := e.now
	var cause Cause
	switch v := ev.(type) {
	case market.QuoteUpdate:
		if err := e.store.Update(v.Venue, v.Mid, v.ObservedAt); err != nil {
			e.metrics.QuotesDiscarded.Inc()
			e.note = "discarded " + string(v.Venue) + " update: " + err.Error()
			e.log.Warn("quote update discarded",
				zap.String("venue", string(v.Venue)),
				zap.String("mid", v.Mid.String()),
				zap.Error(err),
			)
			return e.snapshot(now, "", nil), false
		}
		e.metrics.QuotesApplied.Inc()
	case market.FundingUpdate:
		e.funding.Observe(v)
	case Tick:
		cause = CauseTick
	default:
		e.log.Warn("unknown engine event", zap.String("type", fmt.Sprintf("%T", ev)))
		return e.snapshot(now, "", nil), false
	}
	stepCause, trade, feedChanged := e.step(now)
	if stepCause != "" {
		cause = stepCause
	}
	snap := e.snapshot(now, cause, trade)
	snap.FeedChanged = feedChanged
	return snap, cause != ""
}

// Snapshot returns the current state without processing an event.
func (e *Engine) Snapshot() Snapshot {
	return e.snapshot(e.now, "", nil)
}

// step runs one evaluation. The returned cause is the highest-priority
// transition; feedChanged reports a degraded flip even when an entry, exit or
// funding settlement outranks it.
func (e *Engine) step(now time.Time) (cause Cause, trade *account.Trade, feedChanged bool) {
	avail, _ := e.store.Refresh(now)
	if degraded := !avail.Both(); degraded != e.degraded {
		e.degraded = degraded
		cause = e.degradedChanged(avail)
		feedChanged = true
	}

	fresh := false
	if avail.Both() {
		spot, _ := e.store.Latest(market.VenueSpot, now)
		perp, _ := e.store.Latest(market.VenuePerp, now)
		sample, err := market.ComputeBasis(spot, perp, now)
		if err != nil {
			e.note = "basis discarded: " + err.Error()
			e.log.Warn("basis sample discarded", zap.Error(err))
		} else {
			e.sample = sample
			e.hasSample = true
			fresh = true
			e.metrics.BasisPct.Set(sample.BasisPct.InexactFloat64())
		}
	}

	if rate, boundary, ok := e.funding.Due(now); ok {
		if e.settleFunding(rate, boundary) {
			cause = CauseFunding
		}
	}

	switch e.machine.State {
	case strategy.StateOpen:
		if closed, ok := e.evaluateExit(now); ok {
			return CauseExit, closed, feedChanged
		}
	case strategy.StateFlat:
		if e.evaluateEntry(now, fresh) {
			return CauseEnter, nil, feedChanged
		}
	}
	return cause, nil, feedChanged
}

func (e *Engine) degradedChanged(avail market.Availability) Cause {
	fields := []zap.Field{zap.Bool("spot_fresh", avail.Spot), zap.Bool("perp_fresh", avail.Perp)}
	if e.degraded {
		e.metrics.DegradedEngaged.Inc()
		e.metrics.Degraded.Set(1)
		e.note = "feed stale: entries suspended"
		e.log.Warn("feed degraded", fields...)
		return CauseDegraded
	}
	e.metrics.DegradedRestored.Inc()
	e.metrics.Degraded.Set(0)
	e.note = "feeds fresh"
	e.log.Info("feed restored", fields...)
	return CauseRestored
}

func (e *Engine) settleFunding(rate decimal.Decimal, boundary time.Time) bool {
	pos, open := e.ledger.Position()
	if !open {
		e.log.Debug("funding boundary passed while flat", zap.Time("boundary", boundary))
		return false
	}
	perp, ok := e.store.Last(market.VenuePerp)
	if !ok {
		e.log.Warn("funding boundary without perp quote", zap.Time("boundary", boundary))
		return false
	}
	payment := e.ledger.ApplyFunding(rate, pos.Quantity, perp.Mid)
	e.metrics.FundingSettled.Inc()
	e.lastAction = fmt.Sprintf("FUNDING %s USDT at rate %s", payment.StringFixed(6), rate.String())
	e.log.Info("funding settled",
		zap.Time("boundary", boundary),
		zap.String("rate", rate.String()),
		zap.String("payment", payment.String()),
	)
	return true
}

func (e *Engine) evaluateEntry(now time.Time, fresh bool) bool {
	if !e.params.ShouldEnter(strategy.EntryInputs{
		State:    e.machine.State,
		Sample:   e.sample,
		Fresh:    fresh,
		Degraded: e.degraded,
		Halted:   e.halted,
	}) {
		return false
	}
	qty, ok := e.params.EntryQuantity(e.ledger.Balance(), e.sample.SpotMid)
	if !ok {
		e.metrics.EntriesSkipped.Inc()
		return false
	}
	fill, err := e.sim.Open(e.sample.SpotMid, e.sample.PerpMid, qty)
	if err != nil {
		e.log.Warn("entry fill rejected", zap.Error(err))
		return false
	}
	if !e.ledger.CanAfford(fill) {
		e.metrics.EntriesSkipped.Inc()
		e.log.Debug("entry skipped: insufficient balance", zap.String("balance", e.ledger.Balance().String()))
		return false
	}
	if err := e.ledger.ApplyOpen(fill, now); err != nil {
		e.log.Warn("entry rejected by ledger", zap.Error(err))
		return false
	}
	e.machine.Apply(strategy.EventEnter)
	e.metrics.Entries.Inc()
	e.lastAction = fmt.Sprintf("ENTER at basis %s%%: qty %s", e.sample.BasisPct.StringFixed(4), qty.StringFixed(4))
	e.log.Info("entered hedged position",
		zap.String("symbol", e.params.Symbol),
		zap.String("basis_pct", e.sample.BasisPct.String()),
		zap.String("qty", qty.String()),
		zap.String("spot_fill", fill.Spot.Price.String()),
		zap.String("perp_fill", fill.Perp.Price.String()),
		zap.String("fees", fill.Fees().String()),
	)
	return true
}

func (e *Engine) evaluateExit(now time.Time) (*account.Trade, bool) {
	pos, open := e.ledger.Position()
	if !open {
		return nil, false
	}
	spot, okSpot := e.store.Last(market.VenueSpot)
	perp, okPerp := e.store.Last(market.VenuePerp)
	if !okSpot || !okPerp {
		return nil, false
	}
	in := strategy.ExitInputs{
		Sample:    e.sample,
		HasSample: e.hasSample,
		Equity:    e.equity(spot.Mid, perp.Mid),
		PerpMark:  perp.Mid,
	}
	if reading, ok := e.gauge.Read(pos.EntryPerpPrice, perp.Mid); ok {
		in.LiqPrice = reading.LiqPrice
		in.HasLiq = true
	}
	reason, ok := e.params.ExitReason(in)
	if !ok {
		return nil, false
	}
	fill, err := e.sim.Close(spot.Mid, perp.Mid, pos.Quantity)
	if err != nil {
		e.log.Warn("exit fill rejected", zap.Error(err))
		return nil, false
	}
	trade, err := e.ledger.ApplyClose(fill, now, string(reason))
	if err != nil {
		e.log.Warn("exit rejected by ledger", zap.Error(err))
		return nil, false
	}
	e.machine.Apply(strategy.EventExit)
	e.metrics.Exits.Inc()
	e.lastAction = fmt.Sprintf("EXIT %s: net %s USDT", reason, trade.Net.StringFixed(4))
	if reason.EquityStop() && e.params.HaltAfterEquityStop {
		e.halted = true
		e.note = "entries halted after " + string(reason)
	}
	e.log.Info("exited hedged position",
		zap.String("symbol", e.params.Symbol),
		zap.String("reason", string(reason)),
		zap.Bool("degraded", e.degraded),
		zap.String("gross", trade.Gross.String()),
		zap.String("net", trade.Net.String()),
	)
	return &trade, true
}

func (e *Engine) equity(spotMid, perpMid decimal.Decimal) decimal.Decimal {
	pos, open := e.ledger.Position()
	if !open {
		return e.ledger.Balance()
	}
	est := e.sim.CloseFeeEstimate(spotMid, perpMid, pos.Quantity)
	return e.ledger.Equity(spotMid, perpMid, est)
}

func (e *Engine) snapshot(now time.Time, cause Cause, trade *account.Trade) Snapshot {
	totals := e.ledger.Totals()
	snap := Snapshot{
		Symbol:              e.params.Symbol,
		Cause:               cause,
		At:                  now,
		State:               e.machine.State,
		Balance:             totals.Balance,
		Equity:              totals.Balance,
		RealizedPnLTotal:    totals.RealizedPnL,
		FeesPaidTotal:       totals.FeesPaid,
		FundingAccruedTotal: totals.FundingAccrued,
		Trades:              totals.Trades,
		ClosedTrade:         trade,
		LastAction:          e.lastAction,
		Note:                e.note,
		Degraded:            e.degraded,
		Halted:              e.halted,
	}
	spot, okSpot := e.store.Last(market.VenueSpot)
	if okSpot {
		_, fresh := e.store.Latest(market.VenueSpot, now)
		snap.Spot = QuoteView{Mid: spot.Mid, ObservedAt: spot.ObservedAt, Known: true, Fresh: fresh}
	}
	perp, okPerp := e.store.Last(market.VenuePerp)
	if okPerp {
		_, fresh := e.store.Latest(market.VenuePerp, now)
		snap.Perp = QuoteView{Mid: perp.Mid, ObservedAt: perp.ObservedAt, Known: true, Fresh: fresh}
	}
	if e.hasSample {
		snap.BasisPct = e.sample.BasisPct
		snap.HasBasis = true
	}
	if e.funding.Known() {
		snap.FundingRate = e.funding.Rate()
		snap.HasFunding = true
		snap.NextFundingAt = e.funding.NextFundingAt()
	}
	if pos, open := e.ledger.Position(); open {
		snap.Position = &pos
		if okSpot && okPerp {
			snap.UnrealizedPnL = e.ledger.UnrealizedPnL(spot.Mid, perp.Mid)
			snap.Equity = e.equity(spot.Mid, perp.Mid)
			if reading, ok := e.gauge.Read(pos.EntryPerpPrice, perp.Mid); ok {
				snap.LiqPrice = reading.LiqPrice
				snap.LiqDistancePct = reading.DistancePct
				snap.LiqAtRisk = reading.AtRisk
				snap.HasLiq = true
				e.metrics.LiqDistancePct.Set(reading.DistancePct.InexactFloat64())
			}
		}
	}
	e.metrics.Equity.Set(snap.Equity.InexactFloat64())
	return snap
}
