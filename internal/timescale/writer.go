package timescale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"basis-sim/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

type Writer struct {
	db         *sql.DB
	log        *zap.Logger
	schema     string
	snapshots  chan SnapshotRow
	trades     chan TradeRow
	started    atomic.Bool
	dropSnap   atomic.Uint64
	dropTrades atomic.Uint64
}

// New returns a nil writer when timescale is disabled. All methods accept a
// nil receiver.
func New(cfg config.TimescaleConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("timescale dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	w := newWriter(db, cfg.Schema, cfg.QueueSize, log)
	if err := w.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func newWriter(db *sql.DB, schema string, queueSize int, log *zap.Logger) *Writer {
	schema = strings.TrimSpace(schema)
	if schema == "" {
		schema = "public"
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{
		db:        db,
		log:       log,
		schema:    schema,
		snapshots: make(chan SnapshotRow, queueSize),
		trades:    make(chan TradeRow, queueSize),
	}
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *Writer) EnqueueSnapshot(row SnapshotRow) {
	if w == nil {
		return
	}
	select {
	case w.snapshots <- row:
	default:
		if w.dropSnap.Add(1) == 1 {
			w.log.Warn("timescale snapshot queue full")
		}
	}
}

func (w *Writer) EnqueueTrade(row TradeRow) {
	if w == nil {
		return
	}
	select {
	case w.trades <- row:
	default:
		if w.dropTrades.Add(1) == 1 {
			w.log.Warn("timescale trade queue full")
		}
	}
}

// Dropped reports how many snapshot and trade rows were discarded because
// the queues were full.
func (w *Writer) Dropped() (uint64, uint64) {
	if w == nil {
		return 0, 0
	}
	return w.dropSnap.Load(), w.dropTrades.Load()
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case row := <-w.snapshots:
			w.writeSnapshot(ctx, row)
		case row := <-w.trades:
			w.writeTrade(ctx, row)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("timescale db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		symbol TEXT NOT NULL,
		cause TEXT NOT NULL,
		state TEXT NOT NULL,
		spot_mid NUMERIC,
		perp_mid NUMERIC,
		basis_pct NUMERIC,
		balance NUMERIC NOT NULL,
		equity NUMERIC NOT NULL,
		unrealized_pnl NUMERIC NOT NULL,
		realized_pnl NUMERIC NOT NULL,
		fees_paid NUMERIC NOT NULL,
		funding_accrued NUMERIC NOT NULL,
		funding_rate NUMERIC,
		liq_distance_pct NUMERIC,
		position_qty NUMERIC NOT NULL,
		degraded BOOLEAN NOT NULL,
		halted BOOLEAN NOT NULL
	)`, w.table("basis_snapshots"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		reason TEXT NOT NULL,
		entry_ts TIMESTAMPTZ NOT NULL,
		exit_ts TIMESTAMPTZ NOT NULL,
		quantity NUMERIC NOT NULL,
		entry_spot NUMERIC NOT NULL,
		entry_perp NUMERIC NOT NULL,
		exit_spot NUMERIC NOT NULL,
		exit_perp NUMERIC NOT NULL,
		gross NUMERIC NOT NULL,
		fees NUMERIC NOT NULL,
		slippage NUMERIC NOT NULL,
		funding NUMERIC NOT NULL,
		net NUMERIC NOT NULL,
		PRIMARY KEY (id, exit_ts)
	)`, w.table("sim_trades"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		w.log.Warn("timescale extension ensure failed", zap.Error(err))
		return nil
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("basis_snapshots"))); err != nil {
		w.log.Warn("timescale basis_snapshots hypertable create failed", zap.Error(err))
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'exit_ts', if_not_exists => TRUE)", w.table("sim_trades"))); err != nil {
		w.log.Warn("timescale sim_trades hypertable create failed", zap.Error(err))
	}
	return nil
}

func (w *Writer) writeSnapshot(ctx context.Context, row SnapshotRow) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, symbol, cause, state, spot_mid, perp_mid, basis_pct, balance, equity, unrealized_pnl,
		realized_pnl, fees_paid, funding_accrued, funding_rate, liq_distance_pct, position_qty, degraded, halted
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
	)`, w.table("basis_snapshots"))
	if _, err := w.db.ExecContext(ctx, query, row.args()...); err != nil {
		w.log.Warn("timescale snapshot insert failed", zap.Error(err))
	}
}

func (w *Writer) writeTrade(ctx context.Context, row TradeRow) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		id, symbol, reason, entry_ts, exit_ts, quantity, entry_spot, entry_perp, exit_spot, exit_perp,
		gross, fees, slippage, funding, net
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
	)
	ON CONFLICT (id, exit_ts) DO NOTHING`, w.table("sim_trades"))
	if _, err := w.db.ExecContext(ctx, query, row.args()...); err != nil {
		w.log.Warn("timescale trade insert failed", zap.String("trade_id", row.ID), zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
