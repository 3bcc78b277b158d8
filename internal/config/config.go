package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LoggingConfig   `yaml:"log"`
	Feed      FeedConfig      `yaml:"feed"`
	Sim       SimConfig       `yaml:"sim"`
	Report    ReportConfig    `yaml:"report"`
	State     StateConfig     `yaml:"state"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Timescale TimescaleConfig `yaml:"timescale"`
	Redis     RedisConfig     `yaml:"redis"`
	Telegram  TelegramConfig  `yaml:"telegram"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type FeedConfig struct {
	SpotURL        string        `yaml:"spot_url"`
	PerpURL        string        `yaml:"perp_url"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	QueueSize      int           `yaml:"queue_size"`
}

// SimConfig is the engine configuration surface. Percent values are in percent
// (0.6 means 0.6%), slippage is in basis points.
type SimConfig struct {
	Symbol              string        `yaml:"symbol"`
	StartUSDT           float64       `yaml:"start_usdt"`
	AllocFraction       float64       `yaml:"alloc_fraction"`
	EntryBasisPct       float64       `yaml:"entry_basis_pct"`
	ExitBasisPct        float64       `yaml:"exit_basis_pct"`
	TakeProfitUSDT      float64       `yaml:"take_profit_usdt"`
	StopLossUSDT        float64       `yaml:"stop_loss_usdt"`
	SpotTakerFeePct     float64       `yaml:"spot_taker_fee_pct"`
	PerpTakerFeePct     float64       `yaml:"perp_taker_fee_pct"`
	SpotSlippageBps     float64       `yaml:"spot_slippage_bps"`
	PerpSlippageBps     float64       `yaml:"perp_slippage_bps"`
	Leverage            float64       `yaml:"leverage"`
	MMRPct              float64       `yaml:"mmr_pct"`
	LiqWarningPct       float64       `yaml:"liq_warning_pct"`
	DisableEquityStops  bool          `yaml:"disable_equity_stops"`
	ExitOnLiquidation   bool          `yaml:"exit_on_liquidation"`
	HaltAfterEquityStop bool          `yaml:"halt_after_equity_stop"`
	RefreshInterval     time.Duration `yaml:"refresh_interval"`
	StaleTimeout        time.Duration `yaml:"stale_timeout"`
}

type ReportConfig struct {
	Terminal  bool `yaml:"terminal"`
	QueueSize int  `yaml:"queue_size"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
	// SnapshotEvery saves every Nth tick snapshot; transitions are always saved.
	SnapshotEvery int `yaml:"snapshot_every"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

type TimescaleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
	Channel  string `yaml:"channel"`
	MaxLen   int64  `yaml:"max_len"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, validate(&cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Feed.SpotURL == "" {
		cfg.Feed.SpotURL = "wss://stream.bybit.com/v5/public/spot"
	}
	if cfg.Feed.PerpURL == "" {
		cfg.Feed.PerpURL = "wss://stream.bybit.com/v5/public/linear"
	}
	if cfg.Feed.ReconnectDelay == 0 {
		cfg.Feed.ReconnectDelay = time.Second
	}
	if cfg.Feed.PingInterval == 0 {
		cfg.Feed.PingInterval = 20 * time.Second
	}
	if cfg.Feed.QueueSize == 0 {
		cfg.Feed.QueueSize = 1024
	}
	cfg.Sim.Symbol = strings.ToUpper(strings.TrimSpace(cfg.Sim.Symbol))
	if cfg.Sim.Symbol == "" {
		cfg.Sim.Symbol = "ADAUSDT"
	}
	if cfg.Sim.StartUSDT == 0 {
		cfg.Sim.StartUSDT = 100
	}
	if cfg.Sim.AllocFraction == 0 {
		cfg.Sim.AllocFraction = 0.95
	}
	if cfg.Sim.EntryBasisPct == 0 && cfg.Sim.ExitBasisPct == 0 {
		cfg.Sim.EntryBasisPct = 0.60
		cfg.Sim.ExitBasisPct = 0.10
	}
	if cfg.Sim.TakeProfitUSDT == 0 && cfg.Sim.StopLossUSDT == 0 {
		cfg.Sim.TakeProfitUSDT = 1.00
		cfg.Sim.StopLossUSDT = 2.00
	}
	if cfg.Sim.Leverage == 0 {
		cfg.Sim.Leverage = 3
	}
	if cfg.Sim.RefreshInterval == 0 {
		cfg.Sim.RefreshInterval = 250 * time.Millisecond
	}
	if cfg.Sim.StaleTimeout == 0 {
		cfg.Sim.StaleTimeout = 10 * time.Second
	}
	if cfg.Report.QueueSize == 0 {
		cfg.Report.QueueSize = 256
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/basis-sim.db"
	}
	if cfg.State.SnapshotEvery == 0 {
		cfg.State.SnapshotEvery = 20
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = "127.0.0.1:9002"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Timescale.Schema == "" {
		cfg.Timescale.Schema = "public"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.Redis.Stream == "" {
		cfg.Redis.Stream = "basis-sim:snapshots"
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "basis-sim:snapshots:pub"
	}
}

func applyEnvOverrides(cfg *Config) {
	if val := strings.TrimSpace(os.Getenv("BASIS_TELEGRAM_TOKEN")); val != "" {
		cfg.Telegram.Token = val
	}
	if val := strings.TrimSpace(os.Getenv("BASIS_TELEGRAM_CHAT_ID")); val != "" {
		cfg.Telegram.ChatID = val
	}
	if val := strings.TrimSpace(os.Getenv("BASIS_TIMESCALE_DSN")); val != "" {
		cfg.Timescale.DSN = val
	}
	if val := os.Getenv("BASIS_REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
}

func validate(cfg *Config) error {
	if err := ValidateSim(cfg.Sim); err != nil {
		return err
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "console" {
		return errors.New("log.format must be json or console")
	}
	if cfg.Feed.ReconnectDelay < 0 {
		return errors.New("feed.reconnect_delay must be >= 0")
	}
	if cfg.Feed.PingInterval < 0 {
		return errors.New("feed.ping_interval must be >= 0")
	}
	if cfg.Feed.QueueSize < 0 {
		return errors.New("feed.queue_size must be >= 0")
	}
	if cfg.Report.QueueSize < 0 {
		return errors.New("report.queue_size must be >= 0")
	}
	if cfg.State.SnapshotEvery < 0 {
		return errors.New("state.snapshot_every must be >= 0")
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return errors.New("metrics.path must start with /")
	}
	if cfg.Timescale.Enabled && strings.TrimSpace(cfg.Timescale.DSN) == "" {
		return errors.New("timescale.dsn is required when timescale is enabled")
	}
	if cfg.Redis.Enabled && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return errors.New("redis.addr is required when redis is enabled")
	}
	if cfg.Telegram.Enabled && (strings.TrimSpace(cfg.Telegram.Token) == "" || strings.TrimSpace(cfg.Telegram.ChatID) == "") {
		return errors.New("telegram.token and telegram.chat_id are required when telegram is enabled")
	}
	return nil
}

// ValidateSim checks the engine configuration surface. It is exported so the
// engine can refuse construction from a SimConfig that bypassed Load.
func ValidateSim(sim SimConfig) error {
	if strings.TrimSpace(sim.Symbol) == "" {
		return errors.New("sim.symbol is required")
	}
	if sim.StartUSDT <= 0 {
		return errors.New("sim.start_usdt must be > 0")
	}
	if sim.AllocFraction <= 0 || sim.AllocFraction > 1 {
		return errors.New("sim.alloc_fraction must be in (0,1]")
	}
	if sim.EntryBasisPct <= sim.ExitBasisPct {
		return fmt.Errorf("sim.entry_basis_pct (%v) must be > sim.exit_basis_pct (%v)", sim.EntryBasisPct, sim.ExitBasisPct)
	}
	if sim.TakeProfitUSDT < 0 {
		return errors.New("sim.take_profit_usdt must be >= 0")
	}
	if sim.StopLossUSDT < 0 {
		return errors.New("sim.stop_loss_usdt must be >= 0")
	}
	if sim.SpotTakerFeePct < 0 || sim.PerpTakerFeePct < 0 {
		return errors.New("sim taker fees must be >= 0")
	}
	if sim.SpotSlippageBps < 0 || sim.PerpSlippageBps < 0 {
		return errors.New("sim slippage bps must be >= 0")
	}
	if sim.Leverage <= 0 {
		return errors.New("sim.leverage must be > 0")
	}
	if sim.MMRPct < 0 || sim.MMRPct >= 100 {
		return errors.New("sim.mmr_pct must be in [0,100)")
	}
	if sim.LiqWarningPct < 0 {
		return errors.New("sim.liq_warning_pct must be >= 0")
	}
	if sim.RefreshInterval <= 0 {
		return errors.New("sim.refresh_interval must be > 0")
	}
	if sim.StaleTimeout <= 0 {
		return errors.New("sim.stale_timeout must be > 0")
	}
	return nil
}
