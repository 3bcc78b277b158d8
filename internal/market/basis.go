package market

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrZeroSpotPrice = errors.New("spot mid is zero")

var hundred = decimal.NewFromInt(100)

type BasisSample struct {
	SpotMid    decimal.Decimal
	PerpMid    decimal.Decimal
	BasisPct   decimal.Decimal
	ComputedAt time.Time
}

// ComputeBasis returns (perp - spot) / spot * 100 for the two quotes. The
// difference is scaled before dividing so the percent keeps full division
// precision.
func ComputeBasis(spot, perp Quote, now time.Time) (BasisSample, error) {
	if spot.Mid.IsZero() {
		return BasisSample{}, ErrZeroSpotPrice
	}
	pct := perp.Mid.Sub(spot.Mid).Mul(hundred).Div(spot.Mid)
	return BasisSample{
		SpotMid:    spot.Mid,
		PerpMid:    perp.Mid,
		BasisPct:   pct,
		ComputedAt: now,
	}, nil
}
