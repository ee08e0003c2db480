// ABOUTME: CLI command for copying the ledger between storage backends.
// ABOUTME: Used when switching between badger, sqlite and charm.
package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/deficit/internal/config"
	"github.com/harperreed/deficit/internal/storage"
)

var (
	migrateFrom   string
	migrateTo     string
	migrateDryRun bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy data between storage backends",
	Long: `Copy every settings, day and meal entry from one backend to another.

Keys already present in the destination are overwritten. Afterwards,
point the config at the new backend:

  "backend": "sqlite"      in ~/.config/deficit/config.json
  DEFICIT_BACKEND=sqlite   in the environment

USAGE:

  deficit migrate --to sqlite --dry-run    # Count what would be copied
  deficit migrate --to sqlite              # Copy from the configured backend
  deficit migrate --from sqlite --to charm`,
	Args: cobra.NoArgs,
	Annotations: map[string]string{
		"store": "none",
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		from := migrateFrom
		if from == "" {
			from = cfg.GetBackend()
		}
		if migrateTo == "" {
			return errors.New("--to is required")
		}
		if from == migrateTo {
			return fmt.Errorf("source and destination are both %s", from)
		}

		src, err := cfg.OpenBackend(from)
		if err != nil {
			return fmt.Errorf("open %s: %w", from, err)
		}
		defer func() { _ = src.Close() }()

		if migrateDryRun {
			return previewMigration(from, src)
		}

		if migrateTo == config.BackendBadger {
			path := cfg.StorePath(migrateTo)
			if nonEmpty, _ := storage.IsDirNonEmpty(path); nonEmpty {
				color.Yellow("⚠ %s already has data; matching keys will be overwritten", path)
			}
		}

		dst, err := cfg.OpenBackend(migrateTo)
		if err != nil {
			return fmt.Errorf("open %s: %w", migrateTo, err)
		}
		defer func() { _ = dst.Close() }()

		summary, err := storage.MigrateData(src, dst)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		color.Green("✓ Migrated %s → %s", from, migrateTo)
		printMigrateSummary(summary)
		return nil
	},
}

func previewMigration(from string, src storage.Store) error {
	entries, err := src.Entries("")
	if err != nil {
		return err
	}
	color.Yellow("Dry run mode - no changes will be made")
	fmt.Printf("Would copy %d entries from %s to %s\n", len(entries), from, migrateTo)
	return nil
}

func printMigrateSummary(s *storage.MigrateSummary) {
	fmt.Printf("  Settings: %d\n", s.Settings)
	fmt.Printf("  Days:     %d\n", s.Summaries)
	fmt.Printf("  Meals:    %d\n", s.Records)
	if s.Other > 0 {
		fmt.Printf("  Other:    %d\n", s.Other)
	}
}

func init() {
	migrateCmd.Flags().StringVar(&migrateFrom, "from", "", "source backend (default: configured backend)")
	migrateCmd.Flags().StringVar(&migrateTo, "to", "", "destination backend (badger, sqlite, charm)")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "preview migration without making changes")
	rootCmd.AddCommand(migrateCmd)
}
