package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"basis-sim/internal/account"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create state dir: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			reason TEXT NOT NULL,
			quantity TEXT NOT NULL,
			entry_spot_price TEXT NOT NULL,
			entry_perp_price TEXT NOT NULL,
			exit_spot_price TEXT NOT NULL,
			exit_perp_price TEXT NOT NULL,
			entry_time_ms INTEGER NOT NULL,
			exit_time_ms INTEGER NOT NULL,
			spot_pnl TEXT NOT NULL,
			perp_pnl TEXT NOT NULL,
			gross TEXT NOT NULL,
			fees TEXT NOT NULL,
			slippage TEXT NOT NULL,
			funding TEXT NOT NULL,
			net TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS trades_symbol_exit ON trades (symbol, exit_time_ms)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

// AppendTrade stores decimals as their exact string form.
func (s *Store) AppendTrade(ctx context.Context, symbol string, t account.Trade) error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("trade id is required")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO trades (
		id, symbol, reason, quantity, entry_spot_price, entry_perp_price, exit_spot_price, exit_perp_price,
		entry_time_ms, exit_time_ms, spot_pnl, perp_pnl, gross, fees, slippage, funding, net
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		t.ID, strings.ToUpper(symbol), t.Reason, t.Quantity.String(),
		t.EntrySpotPrice.String(), t.EntryPerpPrice.String(), t.ExitSpotPrice.String(), t.ExitPerpPrice.String(),
		t.EntryTime.UnixMilli(), t.ExitTime.UnixMilli(),
		t.SpotPnL.String(), t.PerpPnL.String(), t.Gross.String(), t.Fees.String(), t.Slippage.String(), t.Funding.String(), t.Net.String(),
	)
	return err
}

// RecentTrades returns up to limit trades for symbol, newest first.
func (s *Store) RecentTrades(ctx context.Context, symbol string, limit int) ([]account.Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, reason, quantity, entry_spot_price, entry_perp_price, exit_spot_price, exit_perp_price,
		entry_time_ms, exit_time_ms, spot_pnl, perp_pnl, gross, fees, slippage, funding, net
		FROM trades WHERE symbol = ? ORDER BY exit_time_ms DESC, rowid DESC LIMIT ?`, strings.ToUpper(symbol), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []account.Trade
	for rows.Next() {
		var (
			t                   account.Trade
			entryMS, exitMS     int64
			qty, es, ep, xs, xp string
			spot, perp, gross   string
			fees, slip, fund    string
			net                 string
		)
		if err := rows.Scan(&t.ID, &t.Reason, &qty, &es, &ep, &xs, &xp, &entryMS, &exitMS,
			&spot, &perp, &gross, &fees, &slip, &fund, &net); err != nil {
			return nil, err
		}
		fields := []struct {
			dst *decimal.Decimal
			raw string
		}{
			{&t.Quantity, qty}, {&t.EntrySpotPrice, es}, {&t.EntryPerpPrice, ep},
			{&t.ExitSpotPrice, xs}, {&t.ExitPerpPrice, xp}, {&t.SpotPnL, spot}, {&t.PerpPnL, perp},
			{&t.Gross, gross}, {&t.Fees, fees}, {&t.Slippage, slip}, {&t.Funding, fund}, {&t.Net, net},
		}
		for _, f := range fields {
			v, err := decimal.NewFromString(f.raw)
			if err != nil {
				return nil, fmt.Errorf("trade %s: %w", t.ID, err)
			}
			*f.dst = v
		}
		t.EntryTime = time.UnixMilli(entryMS).UTC()
		t.ExitTime = time.UnixMilli(exitMS).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
