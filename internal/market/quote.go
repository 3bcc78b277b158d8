package market

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Venue string

const (
	VenueSpot Venue = "spot"
	VenuePerp Venue = "perp"
)

var ErrInvalidPrice = errors.New("mid price must be > 0")

type Quote struct {
	Venue      Venue
	Mid        decimal.Decimal
	ObservedAt time.Time
}

// Availability reports which venues have a fresh quote.
type Availability struct {
	Spot bool
	Perp bool
}

func (a Availability) Both() bool {
	return a.Spot && a.Perp
}

// QuoteStore keeps the latest mid per venue. It is owned by the engine loop
// and is not safe for concurrent use.
type QuoteStore struct {
	staleAfter time.Duration
	quotes     map[Venue]Quote
	avail      Availability
}

func NewQuoteStore(staleAfter time.Duration) *QuoteStore {
	return &QuoteStore{
		staleAfter: staleAfter,
		quotes:     make(map[Venue]Quote, 2),
	}
}

// Update replaces the venue's quote. Non-positive mids are rejected and the
// previous quote is kept.
func (s *QuoteStore) Update(venue Venue, mid decimal.Decimal, observedAt time.Time) error {
	if venue != VenueSpot && venue != VenuePerp {
		return fmt.Errorf("unknown venue %q", venue)
	}
	if !mid.IsPositive() {
		return fmt.Errorf("%s quote %s: %w", venue, mid.String(), ErrInvalidPrice)
	}
	s.quotes[venue] = Quote{Venue: venue, Mid: mid, ObservedAt: observedAt}
	return nil
}

// Latest returns the venue's quote only when it is fresh as of now.
func (s *QuoteStore) Latest(venue Venue, now time.Time) (Quote, bool) {
	q, ok := s.quotes[venue]
	if !ok {
		return Quote{}, false
	}
	if s.staleAfter > 0 && now.Sub(q.ObservedAt) > s.staleAfter {
		return Quote{}, false
	}
	return q, true
}

// Last returns the venue's quote regardless of age.
func (s *QuoteStore) Last(venue Venue) (Quote, bool) {
	q, ok := s.quotes[venue]
	return q, ok
}

// Refresh recomputes availability for both venues and reports whether it
// changed since the previous call.
func (s *QuoteStore) Refresh(now time.Time) (Availability, bool) {
	_, spot := s.Latest(VenueSpot, now)
	_, perp := s.Latest(VenuePerp, now)
	next := Availability{Spot: spot, Perp: perp}
	changed := next != s.avail
	s.avail = next
	return next, changed
}
