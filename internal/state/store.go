package state

import (
	"context"

	"basis-sim/internal/account"
)

// Store is a small key/value store for the latest simulator state.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Journal records closed trades. Appending the same trade ID twice is a
// no-op.
type Journal interface {
	AppendTrade(ctx context.Context, symbol string, trade account.Trade) error
	RecentTrades(ctx context.Context, symbol string, limit int) ([]account.Trade, error)
}
