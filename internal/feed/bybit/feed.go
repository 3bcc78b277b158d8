package bybit

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"basis-sim/internal/engine"
	"basis-sim/internal/feed/ws"
	"basis-sim/internal/market"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type Config struct {
	Symbol         string
	SpotURL        string
	PerpURL        string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
}

// Feed turns the public spot and linear ticker streams into engine events.
// It never authenticates.
type Feed struct {
	symbol  string
	log     *zap.Logger
	now     func() time.Time
	streams []*stream
	warn    rate.Sometimes
}

type stream struct {
	venue  market.Venue
	client *ws.Client

	mu   sync.Mutex
	book book
}

var pingMessage = map[string]string{"op": "ping"}

func New(cfg Config, log *zap.Logger) *Feed {
	if log == nil {
		log = zap.NewNop()
	}
	f := &Feed{
		symbol: strings.ToUpper(cfg.Symbol),
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
		warn:   rate.Sometimes{First: 3, Interval: 30 * time.Second},
	}
	for _, src := range []struct {
		venue market.Venue
		url   string
	}{
		{market.VenueSpot, cfg.SpotURL},
		{market.VenuePerp, cfg.PerpURL},
	} {
		s := &stream{
			venue:  src.venue,
			client: ws.New(src.url, cfg.ReconnectDelay, cfg.PingInterval, pingMessage, log.With(zap.String("venue", string(src.venue)))),
		}
		if cfg.PingInterval > 0 {
			// Pongs arrive every ping, so a healthy stream is never silent this long.
			s.client.SetIdleTimeout(3 * cfg.PingInterval)
		}
		s.client.OnConnect(func() {
			s.mu.Lock()
			s.book.reset()
			s.mu.Unlock()
			log.Info("ticker stream connected",
				zap.String("venue", string(s.venue)),
				zap.String("symbol", f.symbol),
				zap.Uint64("reconnects", s.client.Reconnects()),
			)
		})
		f.streams = append(f.streams, s)
	}
	return f
}

// Run streams both venues into out until ctx is done.
func (f *Feed) Run(ctx context.Context, out chan<- engine.Event) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range f.streams {
		s := s
		g.Go(func() error {
			return f.runStream(gctx, s, out)
		})
	}
	return g.Wait()
}

func (f *Feed) runStream(ctx context.Context, s *stream, out chan<- engine.Event) error {
	if err := s.client.Connect(ctx); err != nil {
		f.log.Warn("initial connect failed, retrying", zap.String("venue", string(s.venue)), zap.Error(err))
	}
	sub := map[string]any{"op": "subscribe", "args": []string{tickerTopicPrefix + f.symbol}}
	if err := s.client.Subscribe(ctx, sub); err != nil {
		f.log.Debug("subscription deferred until connect", zap.String("venue", string(s.venue)), zap.Error(err))
	}
	return s.client.Run(ctx, func(raw json.RawMessage) {
		for _, ev := range f.handle(s, raw) {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	})
}

func (f *Feed) handle(s *stream, raw []byte) []engine.Event {
	receivedAt := f.now()
	tickers, ctl, err := parseMessage(raw)
	if err != nil {
		f.warn.Do(func() {
			f.log.Warn("dropped malformed frame", zap.String("venue", string(s.venue)), zap.Error(err))
		})
		return nil
	}
	if ctl != nil {
		if !ctl.Success {
			f.log.Warn("stream request rejected", zap.String("venue", string(s.venue)), zap.String("op", ctl.Op), zap.String("reason", ctl.RetMsg))
		}
		return nil
	}
	if len(tickers) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fundingChanged := false
	applied := false
	for _, t := range tickers {
		if t.Symbol != "" && !strings.EqualFold(t.Symbol, f.symbol) {
			continue
		}
		changed, err := s.book.apply(t)
		if err != nil {
			f.warn.Do(func() {
				f.log.Warn("dropped malformed ticker", zap.String("venue", string(s.venue)), zap.Error(err))
			})
			continue
		}
		applied = true
		fundingChanged = fundingChanged || changed
	}
	if !applied {
		return nil
	}
	var events []engine.Event
	if mid, ok := s.book.mid(); ok {
		events = append(events, market.QuoteUpdate{Venue: s.venue, Mid: mid, ObservedAt: receivedAt})
	}
	if s.venue == market.VenuePerp && fundingChanged {
		if fr, next, ok := s.book.funding(); ok {
			events = append(events, market.FundingUpdate{Rate: fr, NextFundingAt: next, ObservedAt: receivedAt})
		}
	}
	return events
}
