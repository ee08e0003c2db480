// ABOUTME: CLI commands for logging, listing and deleting meals.
// ABOUTME: add analyzes a photo through the vision endpoint or books a pasted analysis.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/deficit/internal/ledger"
	"github.com/harperreed/deficit/internal/models"
	"github.com/harperreed/deficit/internal/stream"
)

var (
	addDate string
	addJSON string
)

var addCmd = &cobra.Command{
	Use:   "add [photo]",
	Short: "Log a meal from a photo",
	Long: `Log a meal by analyzing a photo with your configured vision model.

The photo is sent to the AI endpoint set with 'deficit ai'. Nothing is
recorded until the analysis finishes; press Ctrl-C to abandon it.

Use --json to book an analysis you already have (same shape the model
returns, code fences allowed). Pass - to read it from stdin.

EXAMPLES:

  deficit add lunch.jpg                  # Analyze and log for today
  deficit add dinner.png -d yesterday    # Log for yesterday
  deficit add --json meal.json           # Book a saved analysis
  pbpaste | deficit add --json -         # Book a pasted analysis`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := resolveDate(addDate, time.Now())
		if err != nil {
			return err
		}

		var record *models.FoodRecord
		switch {
		case addJSON != "":
			record, err = addFromJSON(date, addJSON)
		case len(args) == 1:
			record, err = addFromPhoto(date, args[0])
		default:
			return errors.New("provide a photo path or --json")
		}
		if err != nil {
			return err
		}

		color.Green("✓ Logged %.0f kcal", record.TotalCalories)
		fmt.Println(formatRecord(*record))
		for _, it := range record.Items {
			if it.Tips != "" {
				fmt.Printf("  %s %s\n", faint.Sprint(it.Name+":"), it.Tips)
			}
		}
		return nil
	},
}

func addFromPhoto(date, path string) (*models.FoodRecord, error) {
	image, err := encodeImage(path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Println(faint.Sprint("Analyzing photo..."))
	record, err := ledg.Capture(ctx, date, image)
	if ledger.IsCanceled(err) {
		return nil, errors.New("analysis canceled, nothing was recorded")
	}
	return record, err
}

func addFromJSON(date, source string) (*models.FoodRecord, error) {
	var raw []byte
	var err error
	if source == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis: %w", err)
	}

	result, err := models.ParseAnalysis(stream.Extract(string(raw)))
	if err != nil {
		return nil, err
	}
	return ledg.Food.AddRecord(date, *result, "")
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "meals"},
	Short:   "List meals for a day",
	Long: `List the meals recorded on a day, newest first.

The first column is the short ID used by 'deficit delete'.

EXAMPLES:

  deficit list
  deficit ls -d 2024-11-01`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := resolveDate(addDate, time.Now())
		if err != nil {
			return err
		}

		records, err := ledg.Food.ListForDate(date)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Printf("No meals recorded on %s.\n", date)
			return nil
		}

		var total float64
		for _, r := range records {
			fmt.Println(formatRecord(r))
			total += r.TotalCalories
		}
		fmt.Println(faint.Sprintf("%d meals, %.0f kcal", len(records), total))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"del", "rm"},
	Short:   "Delete a meal",
	Long: `Delete a meal by its ID or ID prefix and take its calories off the day.

The short ID is shown in the first column of 'deficit list'.

EXAMPLES:

  deficit delete 3f9a1c2e
  deficit rm 3f9a               # Short prefix (if unique)`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		record, err := ledg.Food.Resolve(args[0])
		if err != nil {
			return err
		}
		if _, err := ledg.Food.DeleteRecord(record.ID); err != nil {
			return fmt.Errorf("failed to delete meal: %w", err)
		}

		color.Yellow("✗ Deleted %s", truncate(itemNames(*record), 40))
		fmt.Printf("  %s %s %.0f kcal\n", faint.Sprint(record.ShortID()), record.Date, record.TotalCalories)
		return nil
	},
}

func init() {
	addCmd.Flags().StringVarP(&addDate, "date", "d", "", "date (YYYY-MM-DD, today, yesterday)")
	addCmd.Flags().StringVar(&addJSON, "json", "", "book an analysis from a JSON file (- for stdin)")
	listCmd.Flags().StringVarP(&addDate, "date", "d", "", "date (YYYY-MM-DD, today, yesterday)")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
}
