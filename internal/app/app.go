package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"basis-sim/internal/alerts"
	"basis-sim/internal/config"
	"basis-sim/internal/engine"
	"basis-sim/internal/feed/bybit"
	"basis-sim/internal/metrics"
	"basis-sim/internal/report"
	"basis-sim/internal/state/sqlite"
	"basis-sim/internal/strategy"
	"basis-sim/internal/timescale"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// eventSource produces market events for the engine.
type eventSource interface {
	Run(ctx context.Context, out chan<- engine.Event) error
}

type App struct {
	cfg        *config.Config
	log        *zap.Logger
	prom       *metrics.Prometheus
	engine     *engine.Engine
	feed       eventSource
	dispatcher *report.Dispatcher
	store      *sqlite.Store
	timescale  *timescale.Writer
	redis      *redis.Client
	now        func() time.Time
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	params, err := strategy.ParamsFromConfig(cfg.Sim)
	if err != nil {
		return nil, err
	}
	prom := metrics.NewPrometheus()
	eng, err := engine.New(params, log.Named("engine"), prom.Metrics)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:    cfg,
		log:    log,
		prom:   prom,
		engine: eng,
		feed: bybit.New(bybit.Config{
			Symbol:         cfg.Sim.Symbol,
			SpotURL:        cfg.Feed.SpotURL,
			PerpURL:        cfg.Feed.PerpURL,
			ReconnectDelay: cfg.Feed.ReconnectDelay,
			PingInterval:   cfg.Feed.PingInterval,
		}, log.Named("feed")),
		now: func() time.Time { return time.Now().UTC() },
	}

	var sinks []report.Sink
	if cfg.Report.Terminal {
		sinks = append(sinks, report.NewTerminal(os.Stdout, true))
	}
	if cfg.State.SQLitePath != "" {
		store, err := sqlite.New(cfg.State.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.store = store
		sinks = append(sinks, report.NewStore(store, store, cfg.State.SnapshotEvery))
	}
	if cfg.Timescale.Enabled {
		writer, err := timescale.New(cfg.Timescale, log.Named("timescale"))
		if err != nil {
			a.close()
			return nil, err
		}
		a.timescale = writer
		sinks = append(sinks, report.NewTimescale(writer))
	}
	if cfg.Redis.Enabled {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		sinks = append(sinks, report.NewRedis(a.redis, cfg.Redis.Stream, cfg.Redis.Channel, cfg.Redis.MaxLen))
	}
	if cfg.Telegram.Enabled {
		sinks = append(sinks, report.NewAlert(alerts.NewTelegram(cfg.Telegram, log.Named("telegram"))))
	}
	a.dispatcher = report.NewDispatcher(cfg.Report.QueueSize, log.Named("report"), prom.Metrics, sinks...)
	return a, nil
}

// Run streams market data through the engine until ctx is done. The
// simulated position, if any, is left open on shutdown.
func (a *App) Run(ctx context.Context) error {
	defer a.close()
	if a.redis != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := a.redis.Ping(pingCtx).Err(); err != nil {
			a.log.Warn("redis ping failed, snapshots will retry per publish", zap.Error(err))
		}
		cancel()
	}

	events := make(chan engine.Event, a.cfg.Feed.QueueSize)
	g, gctx := errgroup.WithContext(ctx)
	a.timescale.Start(gctx)

	g.Go(func() error {
		a.dispatcher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return a.feed.Run(gctx, events)
	})
	g.Go(func() error {
		return a.tickLoop(gctx, events)
	})
	g.Go(func() error {
		return a.engine.Run(gctx, events, a.dispatcher)
	})
	if a.cfg.Metrics.Enabled {
		g.Go(func() error {
			return a.serveMetrics(gctx)
		})
	}

	a.log.Info("simulation started",
		zap.String("symbol", a.cfg.Sim.Symbol),
		zap.Float64("start_usdt", a.cfg.Sim.StartUSDT),
		zap.Float64("entry_basis_pct", a.cfg.Sim.EntryBasisPct),
		zap.Float64("exit_basis_pct", a.cfg.Sim.ExitBasisPct),
	)
	err := g.Wait()
	final := a.engine.Snapshot()
	a.log.Info("simulation stopped",
		zap.String("state", string(final.State)),
		zap.String("equity", final.Equity.StringFixed(4)),
		zap.String("realized_pnl", final.RealizedPnLTotal.StringFixed(4)),
		zap.Int("trades", final.Trades),
		zap.Uint64("snapshots_dropped", a.dispatcher.Dropped()),
	)
	return err
}

// tickLoop drives periodic snapshots and staleness checks through the same
// channel as market data, so the engine stays single-threaded.
func (a *App) tickLoop(ctx context.Context, out chan<- engine.Event) error {
	ticker := time.NewTicker(a.cfg.Sim.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			select {
			case out <- engine.Tick{At: a.now()}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (a *App) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, a.prom.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: a.cfg.Metrics.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	a.log.Info("metrics listening", zap.String("addr", a.cfg.Metrics.Address), zap.String("path", a.cfg.Metrics.Path))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.log.Warn("metrics server failed", zap.Error(err))
	}
	return nil
}

func (a *App) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("state store close failed", zap.Error(err))
		}
	}
	if err := a.timescale.Close(); err != nil {
		a.log.Warn("timescale close failed", zap.Error(err))
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
