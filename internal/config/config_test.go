package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := &Config{Sim: SimConfig{Symbol: "adausdt"}}
	applyDefaults(cfg)
	return cfg
}

func TestSimDefaults(t *testing.T) {
	cfg := validConfig()
	if cfg.Sim.Symbol != "ADAUSDT" {
		t.Fatalf("expected symbol upper-cased, got %q", cfg.Sim.Symbol)
	}
	if cfg.Sim.StartUSDT != 100 {
		t.Fatalf("expected start usdt 100, got %v", cfg.Sim.StartUSDT)
	}
	if cfg.Sim.AllocFraction != 0.95 {
		t.Fatalf("expected alloc fraction 0.95, got %v", cfg.Sim.AllocFraction)
	}
	if cfg.Sim.EntryBasisPct != 0.60 || cfg.Sim.ExitBasisPct != 0.10 {
		t.Fatalf("expected default thresholds, got %v/%v", cfg.Sim.EntryBasisPct, cfg.Sim.ExitBasisPct)
	}
	if cfg.Sim.TakeProfitUSDT != 1.00 || cfg.Sim.StopLossUSDT != 2.00 {
		t.Fatalf("expected default equity stops 1/2, got %v/%v", cfg.Sim.TakeProfitUSDT, cfg.Sim.StopLossUSDT)
	}
	if cfg.Sim.DisableEquityStops {
		t.Fatalf("expected equity stops enabled by default")
	}
	if cfg.Sim.RefreshInterval <= 0 {
		t.Fatalf("expected refresh interval default, got %v", cfg.Sim.RefreshInterval)
	}
	if cfg.Sim.StaleTimeout <= 0 {
		t.Fatalf("expected stale timeout default, got %v", cfg.Sim.StaleTimeout)
	}
	if err := validate(cfg); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestFeedDefaults(t *testing.T) {
	cfg := validConfig()
	if cfg.Feed.SpotURL != "wss://stream.bybit.com/v5/public/spot" {
		t.Fatalf("unexpected spot url %q", cfg.Feed.SpotURL)
	}
	if cfg.Feed.PerpURL != "wss://stream.bybit.com/v5/public/linear" {
		t.Fatalf("unexpected perp url %q", cfg.Feed.PerpURL)
	}
	if cfg.Feed.PingInterval != 20*time.Second {
		t.Fatalf("expected ping interval 20s, got %v", cfg.Feed.PingInterval)
	}
}

func TestExplicitThresholdsKept(t *testing.T) {
	cfg := &Config{Sim: SimConfig{Symbol: "BTCUSDT", EntryBasisPct: 0.3}}
	applyDefaults(cfg)
	if cfg.Sim.EntryBasisPct != 0.3 || cfg.Sim.ExitBasisPct != 0 {
		t.Fatalf("expected explicit thresholds preserved, got %v/%v", cfg.Sim.EntryBasisPct, cfg.Sim.ExitBasisPct)
	}
	if err := validate(cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestExplicitZeroStopKept(t *testing.T) {
	cfg := &Config{Sim: SimConfig{Symbol: "BTCUSDT", TakeProfitUSDT: 5}}
	applyDefaults(cfg)
	if cfg.Sim.TakeProfitUSDT != 5 || cfg.Sim.StopLossUSDT != 0 {
		t.Fatalf("expected explicit equity stops preserved, got %v/%v", cfg.Sim.TakeProfitUSDT, cfg.Sim.StopLossUSDT)
	}
}

func TestValidateSimRejects(t *testing.T) {
	cases := map[string]func(*SimConfig){
		"entry not above exit":  func(s *SimConfig) { s.EntryBasisPct = 0.1; s.ExitBasisPct = 0.1 },
		"zero leverage":         func(s *SimConfig) { s.Leverage = 0 },
		"negative leverage":     func(s *SimConfig) { s.Leverage = -2 },
		"alloc above one":       func(s *SimConfig) { s.AllocFraction = 1.5 },
		"alloc zero":            func(s *SimConfig) { s.AllocFraction = 0 },
		"negative fee":          func(s *SimConfig) { s.PerpTakerFeePct = -0.01 },
		"negative slippage":     func(s *SimConfig) { s.SpotSlippageBps = -1 },
		"negative take profit":  func(s *SimConfig) { s.TakeProfitUSDT = -1 },
		"negative stop loss":    func(s *SimConfig) { s.StopLossUSDT = -1 },
		"mmr at hundred":        func(s *SimConfig) { s.MMRPct = 100 },
		"negative mmr":          func(s *SimConfig) { s.MMRPct = -0.5 },
		"zero refresh interval": func(s *SimConfig) { s.RefreshInterval = 0 },
		"zero stale timeout":    func(s *SimConfig) { s.StaleTimeout = 0 },
		"zero start":            func(s *SimConfig) { s.StartUSDT = 0 },
		"empty symbol":          func(s *SimConfig) { s.Symbol = "" },
	}
	for name, mutate := range cases {
		cfg := validConfig()
		mutate(&cfg.Sim)
		if err := ValidateSim(cfg.Sim); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestValidateRejectsMetricsPathWithoutSlash(t *testing.T) {
	cfg := validConfig()
	cfg.Metrics = MetricsConfig{Enabled: true, Address: "127.0.0.1:0", Path: "metrics"}
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for metrics path without leading slash")
	}
}

func TestValidateRejectsTimescaleWithoutDSN(t *testing.T) {
	cfg := validConfig()
	cfg.Timescale.Enabled = true
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for missing timescale dsn")
	}
}

func TestValidateRejectsTelegramEnabledWithoutConfig(t *testing.T) {
	t.Setenv("BASIS_TELEGRAM_TOKEN", "")
	t.Setenv("BASIS_TELEGRAM_CHAT_ID", "")
	cfg := validConfig()
	cfg.Telegram = TelegramConfig{Enabled: true}
	applyEnvOverrides(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for missing telegram token/chat_id")
	}
}

func TestTelegramEnvOverridesConfig(t *testing.T) {
	t.Setenv("BASIS_TELEGRAM_TOKEN", "env-token")
	t.Setenv("BASIS_TELEGRAM_CHAT_ID", "123")
	cfg := validConfig()
	cfg.Telegram = TelegramConfig{Enabled: true, Token: "config-token", ChatID: "999"}
	applyEnvOverrides(cfg)
	if cfg.Telegram.Token != "env-token" {
		t.Fatalf("expected env token override, got %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.ChatID != "123" {
		t.Fatalf("expected env chat id override, got %q", cfg.Telegram.ChatID)
	}
	if err := validate(cfg); err != nil {
		t.Fatalf("expected valid config with env overrides, got %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "" +
		"log:\n  level: debug\n" +
		"sim:\n" +
		"  symbol: ethusdt\n" +
		"  start_usdt: 250\n" +
		"  entry_basis_pct: 0.5\n" +
		"  exit_basis_pct: 0.05\n" +
		"  leverage: 2\n" +
		"  disable_equity_stops: true\n" +
		"  stale_timeout: 5s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Log.Level)
	}
	if cfg.Sim.Symbol != "ETHUSDT" || cfg.Sim.StartUSDT != 250 || cfg.Sim.Leverage != 2 {
		t.Fatalf("unexpected sim config %+v", cfg.Sim)
	}
	if cfg.Sim.StaleTimeout != 5*time.Second {
		t.Fatalf("expected stale timeout 5s, got %v", cfg.Sim.StaleTimeout)
	}
	if !cfg.Sim.DisableEquityStops {
		t.Fatalf("expected disable_equity_stops to load")
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("sim:\n  leverage: -1\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for negative leverage")
	}
}

func TestLoadRequiresPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestStateDefaults(t *testing.T) {
	cfg := validConfig()
	if cfg.State.SQLitePath != "data/basis-sim.db" {
		t.Fatalf("unexpected sqlite path %q", cfg.State.SQLitePath)
	}
	if cfg.State.SnapshotEvery != 20 {
		t.Fatalf("expected snapshot_every 20, got %d", cfg.State.SnapshotEvery)
	}
	cfg.State.SnapshotEvery = -1
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for negative snapshot_every")
	}
}
