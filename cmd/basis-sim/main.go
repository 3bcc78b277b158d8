package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"basis-sim/internal/app"
	"basis-sim/internal/config"
	"basis-sim/internal/logging"
	"basis-sim/internal/state/sqlite"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	cfgFile string
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "basis-sim",
		Short:         "Paper-trade a spot/perp basis convergence strategy on live quotes",
		Long:          "basis-sim streams public spot and perpetual tickers, simulates entries and exits of a long-spot short-perp position, and reports the simulated account. It never places orders.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runSim,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "path to .env file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the config and print the effective values",
		Args:  cobra.NoArgs,
		RunE:  runCheck,
	})
	var limit int
	tradesCmd := &cobra.Command{
		Use:   "trades",
		Short: "List recent simulated trades from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrades(cmd, limit)
		},
	}
	tradesCmd.Flags().IntVar(&limit, "limit", 20, "number of trades to show")
	rootCmd.AddCommand(tradesCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if err := config.LoadEnv(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", envFile, err)
	}
	return config.Load(cfgFile)
}

func runSim(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.New(cfg.Log)
	defer func() { _ = log.Sync() }()
	log.Info("config loaded", zap.String("path", cfgFile), zap.String("symbol", cfg.Sim.Symbol))

	application, err := app.New(cfg, log)
	if err != nil {
		log.Error("failed to initialize app", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("app terminated", zap.Error(err))
		return err
	}
	return nil
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	redacted := *cfg
	if redacted.Telegram.Token != "" {
		redacted.Telegram.Token = "***"
	}
	if redacted.Redis.Password != "" {
		redacted.Redis.Password = "***"
	}
	if redacted.Timescale.DSN != "" {
		redacted.Timescale.DSN = "***"
	}
	out, err := yaml.Marshal(redacted)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "# %s is valid\n%s", cfgFile, out)
	return nil
}

func runTrades(cmd *cobra.Command, limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()
	trades, err := store.RecentTrades(cmd.Context(), cfg.Sim.Symbol, limit)
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no trades recorded for %s\n", cfg.Sim.Symbol)
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EXIT\tREASON\tQTY\tGROSS\tFEES\tSLIPPAGE\tFUNDING\tNET")
	for _, t := range trades {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ExitTime.Format("2006-01-02 15:04:05"), t.Reason, t.Quantity.StringFixed(4),
			t.Gross.StringFixed(4), t.Fees.StringFixed(4), t.Slippage.StringFixed(4),
			t.Funding.StringFixed(4), t.Net.StringFixed(4))
	}
	return w.Flush()
}
