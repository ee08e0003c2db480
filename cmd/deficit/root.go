// ABOUTME: Root Cobra command for the deficit CLI.
// ABOUTME: Opens config, logger, store, cache and ledger in PersistentPreRunE and closes them after.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harperreed/deficit/internal/cache"
	"github.com/harperreed/deficit/internal/config"
	"github.com/harperreed/deficit/internal/ledger"
	"github.com/harperreed/deficit/internal/logger"
	"github.com/harperreed/deficit/internal/storage"
	"github.com/harperreed/deficit/internal/vision"
)

var (
	cfg    *config.Config
	store  storage.Store
	memo   *cache.Cache
	ledg   *ledger.Ledger
	appLog *logger.Logger
	logLvl string
)

// Commands that run without opening the store.
var skipInit = map[string]bool{
	"help":       true,
	"completion": true,
	"version":    true,
}

var rootCmd = &cobra.Command{
	Use:   "deficit",
	Short: "Photo-driven calorie deficit tracker",
	Long: `Deficit tracks your daily energy balance: what you burn (BMR plus
active calories) against what you eat, logged by photographing meals.

HOW IT WORKS:

  Burn     BMR (Mifflin-St Jeor, or a manual value) + active calories
  Intake   Sum of every meal recorded for the day
  Net      Burn - Intake; a day succeeds when net meets your target deficit

QUICK START:

  $ deficit profile --gender male --age 30 --height 180 --weight 80
  $ deficit ai --key sk-...              # OpenAI-compatible vision endpoint
  $ deficit add lunch.jpg                # Analyze a photo and log it
  $ deficit active 420                   # Record today's active calories
  $ deficit today                        # Show today's balance
  $ deficit month                        # Calendar of hits and misses

SERVERS:

  $ deficit serve                        # HTTP API on 127.0.0.1:8787
  $ deficit mcp                          # MCP server on stdio

DATA STORAGE:

  Backend is chosen in ~/.config/deficit/config.json or DEFICIT_BACKEND:
  badger (default), sqlite, or charm (synced via Charm Cloud).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipInit[cmd.Name()] || (cmd.HasParent() && skipInit[cmd.Parent().Name()]) {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.GetLogLevel()
		if logLvl != "" {
			level = logLvl
		}
		appLog = logger.NewConsole("cli", level)

		if cmd.Annotations["store"] == "none" {
			return nil
		}
		return openLedger()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLedger()
	},
}

// openLedger opens the configured backend and assembles the ledger over it.
func openLedger() error {
	var err error
	store, err = cfg.OpenStorage()
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", cfg.GetBackend(), err)
	}

	memo = cache.New(cfg.GetCacheTTL())
	ledg = ledger.New(store, memo,
		ledger.WithLogger(appLog.Child("ledger")),
		ledger.WithAnalyzer(vision.New(cfg.GetRequestTimeout(), appLog.Child("vision"))),
	)
	appLog.Debug().Str("backend", cfg.GetBackend()).Msg("ledger ready")
	return nil
}

func closeLedger() error {
	if store == nil {
		return nil
	}
	err := store.Close()
	store = nil
	memo = nil
	ledg = nil
	return err
}

func init() {
	// Post-run hooks are skipped when RunE fails; release the store regardless.
	cobra.OnFinalize(func() { _ = closeLedger() })

	rootCmd.PersistentFlags().StringVar(&logLvl, "log-level", "", "log level (debug, info, warn, error)")
}
