package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"Corexia/internal/di"
	"Corexia/internal/usecase"
	"Corexia/pkg/config"
	"Corexia/pkg/server"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "corexia",
	Short: "Regime-aware paper trading agents",
	Long: `Corexia classifies the market regime from multi-timeframe indicators,
archives a daily fingerprint, and runs three rule-based agents against it
with a paper broker and a full decision audit trail.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API, scheduler and workers until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(app *server.App) error { return app.Run() })
	},
}

var runSymbol string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every enabled agent once for a symbol",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return oneShot(usecase.JobAgentRun, usecase.RunPayload{Symbol: runSymbol})
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Archive today's regime fingerprint for the snapshot symbols",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return oneShot(usecase.JobSnapshot, nil)
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Store recent daily candles for the snapshot symbols",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return oneShot(usecase.JobCandleIngest, nil)
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Fill forward returns on archive records old enough to resolve",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return oneShot(usecase.JobBackfill, nil)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")
	runCmd.Flags().StringVar(&runSymbol, "symbol", "", "symbol to run (default: first configured symbol)")
	rootCmd.AddCommand(serveCmd, runCmd, snapshotCmd, ingestCmd, backfillCmd)
}

func withApp(fn func(*server.App) error) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()
	return fn(app)
}

func oneShot(msgType string, payload interface{}) error {
	return withApp(func(app *server.App) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return app.Exec(ctx, msgType, payload)
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
