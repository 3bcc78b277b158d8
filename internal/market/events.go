package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteUpdate is a normalized mid-price observation from one venue.
type QuoteUpdate struct {
	Venue      Venue
	Mid        decimal.Decimal
	ObservedAt time.Time
}

func (u QuoteUpdate) EventTime() time.Time { return u.ObservedAt }

// FundingUpdate carries the perp's current funding rate and the next
// settlement time as published by the venue.
type FundingUpdate struct {
	Rate          decimal.Decimal
	NextFundingAt time.Time
	ObservedAt    time.Time
}

func (u FundingUpdate) EventTime() time.Time { return u.ObservedAt }
