package bybit

import (
	"time"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// book is the top of book for one stream, merged across snapshot and delta
// pushes.
type book struct {
	bid, ask, last          decimal.Decimal
	hasBid, hasAsk, hasLast bool

	fundingRate    decimal.Decimal
	hasFundingRate bool
	nextFunding    time.Time
}

func (b *book) reset() {
	*b = book{}
}

// apply merges one ticker entry. Every field is parsed before any is stored,
// so a malformed entry leaves the book untouched. It reports whether the
// funding fields changed.
func (b *book) apply(t ticker) (bool, error) {
	bid, hasBid, err := parsePrice(t.Bid1Price)
	if err != nil {
		return false, err
	}
	ask, hasAsk, err := parsePrice(t.Ask1Price)
	if err != nil {
		return false, err
	}
	last, hasLast, err := parsePrice(t.LastPrice)
	if err != nil {
		return false, err
	}
	rate, hasRate, err := parsePrice(t.FundingRate)
	if err != nil {
		return false, err
	}
	next, hasNext, err := parseMillis(t.NextFundingTime)
	if err != nil {
		return false, err
	}

	if hasBid {
		b.bid, b.hasBid = bid, true
	}
	if hasAsk {
		b.ask, b.hasAsk = ask, true
	}
	if hasLast {
		b.last, b.hasLast = last, true
	}
	fundingChanged := false
	if hasRate && (!b.hasFundingRate || !rate.Equal(b.fundingRate)) {
		b.fundingRate, b.hasFundingRate = rate, true
		fundingChanged = true
	}
	if hasNext && !next.Equal(b.nextFunding) {
		b.nextFunding = next
		fundingChanged = true
	}
	return fundingChanged, nil
}

// mid prefers the bid/ask midpoint and falls back to the last trade, since
// spot tickers often carry only lastPrice.
func (b *book) mid() (decimal.Decimal, bool) {
	if b.hasBid && b.hasAsk && b.bid.IsPositive() && b.ask.IsPositive() {
		return b.bid.Add(b.ask).Div(two), true
	}
	if b.hasLast {
		return b.last, true
	}
	return decimal.Zero, false
}

func (b *book) funding() (decimal.Decimal, time.Time, bool) {
	if !b.hasFundingRate || b.nextFunding.IsZero() {
		return decimal.Zero, time.Time{}, false
	}
	return b.fundingRate, b.nextFunding, true
}
