// ABOUTME: CLI commands for exporting, importing and repairing ledger data.
// ABOUTME: Supports JSON, YAML, and Markdown export formats.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/deficit/internal/ledger"
	"github.com/harperreed/deficit/internal/models"
)

var (
	exportOutput string
	exportSince  string
	repairDate   string
)

var exportCmd = &cobra.Command{
	Use:   "export <format>",
	Short: "Export ledger data",
	Long: `Export ledger data in various formats.

FORMATS:

  json       Full JSON export (suitable for backup/restore)
  yaml       YAML export (human-readable, no thumbnails, key redacted)
  markdown   Daily balance table and meal list

OPTIONS:

  --output, -o   Write to file instead of stdout
  --since        Only include days since this date (markdown only)

EXAMPLES:

  deficit export json -o backup.json
  deficit export yaml
  deficit export markdown --since 2024-11-01`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"json", "yaml", "markdown"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error

		switch args[0] {
		case "json":
			data, err = ledg.ExportJSON()
		case "yaml":
			data, err = ledg.ExportYAML()
		case "markdown", "md":
			if exportSince != "" {
				if _, perr := models.ParseDate(exportSince); perr != nil {
					return fmt.Errorf("invalid date format: %s (use YYYY-MM-DD)", exportSince)
				}
			}
			var md string
			md, err = ledg.ExportMarkdown(exportSince)
			data = []byte(md)
		default:
			return fmt.Errorf("unknown format: %s (use json, yaml, or markdown)", args[0])
		}
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		if exportOutput != "" {
			if err := os.WriteFile(exportOutput, data, 0600); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			color.Green("✓ Exported to %s", exportOutput)
			return nil
		}
		fmt.Println(string(data))
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import ledger data from JSON",
	Long: `Import ledger data from a JSON backup made with 'deficit export json'.

Entries with the same key are overwritten.

EXAMPLES:

  deficit import backup.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		summary, err := ledg.ImportJSON(raw)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		color.Green("✓ Imported from %s", args[0])
		fmt.Printf("  Settings:  %d\n", summary.Settings)
		fmt.Printf("  Days:      %d\n", summary.Summaries)
		fmt.Printf("  Meals:     %d\n", summary.Records)
		return nil
	},
}

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Recompute daily totals from meals",
	Long: `Recompute intake and macro totals from the meals actually stored.

Without --date every day that has a balance or a meal is checked. Days
whose totals already match are left untouched.

EXAMPLES:

  deficit repair
  deficit repair -d 2024-11-01`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var repairs []ledger.Repair
		if repairDate != "" {
			if _, err := models.ParseDate(repairDate); err != nil {
				return err
			}
			r, err := ledg.Reconcile(repairDate)
			if err != nil {
				return err
			}
			repairs = append(repairs, r)
		} else {
			all, err := ledg.ReconcileAll()
			if err != nil {
				return err
			}
			repairs = all
		}

		fixed := 0
		for _, r := range repairs {
			if !r.Changed() {
				continue
			}
			fixed++
			color.Yellow("~ %s intake %.0f → %.0f (%d meals)", r.Date, r.Before.TotalIntake, r.After.TotalIntake, r.Records)
		}
		if fixed == 0 {
			color.Green("✓ All %d days consistent", len(repairs))
			return nil
		}
		color.Green("✓ Repaired %d of %d days", fixed, len(repairs))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().StringVar(&exportSince, "since", "", "only include data since date (YYYY-MM-DD)")
	repairCmd.Flags().StringVarP(&repairDate, "date", "d", "", "only repair this date")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(repairCmd)
}
