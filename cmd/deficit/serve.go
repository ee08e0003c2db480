// ABOUTME: CLI commands for the HTTP API and the MCP server.
// ABOUTME: Both run until interrupted and share the ledger opened by the root command.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harperreed/deficit/internal/cache"
	"github.com/harperreed/deficit/internal/mcp"
	"github.com/harperreed/deficit/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the JSON HTTP API used by the web and mobile front ends.

The listen address comes from --addr, DEFICIT_LISTEN_ADDR, or the config
file, in that order. Prometheus metrics are served at /metrics.

ROUTES:

  GET    /api/dashboard?date=          Balance and meals for a day
  GET    /api/stats/{year}/{month}     Monthly calendar
  PUT    /api/days/{date}/active       Set active calories
  PUT    /api/days/{date}/bmr          Override a day's BMR
  POST   /api/days/{date}/food         Book an analysis
  POST   /api/days/{date}/analyze      Analyze a photo and book it
  POST   /api/days/{date}/repair       Recompute totals from records
  DELETE /api/food/{id}                Delete a meal
  GET    /api/settings                 Settings (key redacted)
  PUT    /api/settings/profile|bmr-mode|ai`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.GetListenAddr()
		if serveAddr != "" {
			addr = serveAddr
		}

		stop, err := startSweeper()
		if err != nil {
			return err
		}
		defer stop()

		ctx, cancel := signalContext()
		defer cancel()

		h := server.NewHandler(ledg, appLog.Child("http"))
		if err := server.Serve(ctx, addr, h); err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server",
	Long: `Start the Model Context Protocol (MCP) server for AI assistant integration.

The server communicates via stdin/stdout; logs go to stderr.

CLAUDE DESKTOP CONFIGURATION:

  {
    "mcpServers": {
      "deficit": {
        "command": "deficit",
        "args": ["mcp"]
      }
    }
  }

AVAILABLE TOOLS:

  get_dashboard        Balance and meals for a day
  set_active_calories  Set active calories burned
  set_bmr              Override a day's BMR
  list_food            Meals for a day
  add_food             Book an analysis result
  analyze_photo        Analyze a photo and book it
  delete_food          Delete a meal
  monthly_stats        Monthly calendar
  get_settings         Current settings (key redacted)
  save_profile         Update profile and goals

AVAILABLE RESOURCES:

  deficit://today      Today's balance
  deficit://month      This month's results`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := mcp.NewServer(ledg, appLog.Child("mcp"))
		if err != nil {
			return err
		}

		stop, err := startSweeper()
		if err != nil {
			return err
		}
		defer stop()

		ctx, cancel := signalContext()
		defer cancel()

		return srv.Serve(ctx)
	},
}

// startSweeper evicts expired cache entries for as long as a server runs.
func startSweeper() (func(), error) {
	sweeper, err := cache.NewSweeper(memo, cfg.GetSweepInterval(), appLog.Child("cache"))
	if err != nil {
		return nil, err
	}
	sweeper.Start()
	return sweeper.Stop, nil
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
}
