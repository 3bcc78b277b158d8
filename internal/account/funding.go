package account

import (
	"time"

	"basis-sim/internal/market"

	"github.com/shopspring/decimal"
)

// FundingSchedule turns the stream of funding updates into settlement
// boundaries. Each boundary fires at most once.
type FundingSchedule struct {
	rate     decimal.Decimal
	next     time.Time
	consumed time.Time
	known    bool

	queued    market.FundingUpdate
	hasQueued bool
}

// Observe records the latest published rate and next settlement time. An
// update seen after the pending boundary has passed is held back until Due
// settles that boundary, so the settling rate is the one published before it.
func (s *FundingSchedule) Observe(u market.FundingUpdate) {
	if s.pendingAt(u.ObservedAt) {
		s.queued = u
		s.hasQueued = true
		return
	}
	s.accept(u)
}

// Due reports a boundary that has passed as of now and consumes it.
func (s *FundingSchedule) Due(now time.Time) (decimal.Decimal, time.Time, bool) {
	if !s.pendingAt(now) {
		return decimal.Zero, time.Time{}, false
	}
	rate, boundary := s.rate, s.next
	s.consumed = boundary
	if s.hasQueued {
		s.hasQueued = false
		s.accept(s.queued)
	}
	return rate, boundary, true
}

func (s *FundingSchedule) Known() bool {
	return s.known
}

func (s *FundingSchedule) Rate() decimal.Decimal {
	return s.rate
}

// NextFundingAt is the upcoming unsettled boundary, zero when none is known.
func (s *FundingSchedule) NextFundingAt() time.Time {
	if !s.next.After(s.consumed) {
		return time.Time{}
	}
	return s.next
}

func (s *FundingSchedule) pendingAt(now time.Time) bool {
	return s.known && !s.next.IsZero() && s.next.After(s.consumed) && !now.Before(s.next)
}

func (s *FundingSchedule) accept(u market.FundingUpdate) {
	s.rate = u.Rate
	s.known = true
	if u.NextFundingAt.After(s.consumed) {
		s.next = u.NextFundingAt
	}
}
