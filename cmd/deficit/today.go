// ABOUTME: CLI commands for viewing and editing one day's balance.
// ABOUTME: today shows the dashboard; active and bmr overwrite the burn side.
package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var dayDate string

var todayCmd = &cobra.Command{
	Use:     "today",
	Aliases: []string{"show", "day"},
	Short:   "Show a day's energy balance",
	Long: `Show the energy balance and meals for a day.

The day is created from your profile the first time it is viewed, using
your current BMR and target deficit.

EXAMPLES:

  deficit today                     # Today's dashboard
  deficit today --date yesterday    # Yesterday
  deficit show -d 2024-11-01        # A specific date`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := resolveDate(dayDate, time.Now())
		if err != nil {
			return err
		}

		summary, err := ledg.Daily.GetOrCreate(date)
		if err != nil {
			return err
		}
		records, err := ledg.Food.ListForDate(date)
		if err != nil {
			return err
		}

		printSummary(summary)
		if len(records) == 0 {
			fmt.Println()
			fmt.Println(faint.Sprint("No meals recorded."))
			return nil
		}
		fmt.Println()
		for _, r := range records {
			fmt.Println(formatRecord(r))
		}
		return nil
	},
}

var activeCmd = &cobra.Command{
	Use:   "active <kcal>",
	Short: "Set active calories burned",
	Long: `Set the active calories burned on a day (exercise, steps).

This overwrites the previous value; it does not add to it.

EXAMPLES:

  deficit active 420                # Today
  deficit active 300 -d yesterday   # Yesterday`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kcal, err := strconv.ParseFloat(args[0], 64)
		if err != nil || kcal < 0 {
			return fmt.Errorf("invalid calories: %s", args[0])
		}
		date, err := resolveDate(dayDate, time.Now())
		if err != nil {
			return err
		}

		summary, err := ledg.Daily.SetActiveCalories(date, kcal)
		if err != nil {
			return err
		}
		color.Green("✓ Active calories set to %.0f", kcal)
		fmt.Printf("  %s burn %.0f, net %.0f\n", faint.Sprint(date), summary.TotalBurn, summary.NetCalories)
		return nil
	},
}

var bmrCmd = &cobra.Command{
	Use:   "bmr <kcal>",
	Short: "Override the BMR for one day",
	Long: `Override the BMR recorded on a single day.

This only changes that day. To change the BMR used for new days, use
'deficit profile' or 'deficit mode'.

EXAMPLES:

  deficit bmr 1700
  deficit bmr 1650 -d 2024-11-01`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bmr, err := strconv.ParseFloat(args[0], 64)
		if err != nil || bmr < minBMR || bmr > maxBMR {
			return fmt.Errorf("BMR must be between %d and %d", minBMR, maxBMR)
		}
		date, err := resolveDate(dayDate, time.Now())
		if err != nil {
			return err
		}

		summary, err := ledg.Daily.SetBMR(date, bmr)
		if err != nil {
			return err
		}
		color.Green("✓ BMR for %s set to %.0f", date, bmr)
		fmt.Printf("  %s burn %.0f, net %.0f\n", faint.Sprint(date), summary.TotalBurn, summary.NetCalories)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{todayCmd, activeCmd, bmrCmd} {
		c.Flags().StringVarP(&dayDate, "date", "d", "", "date (YYYY-MM-DD, today, yesterday)")
		rootCmd.AddCommand(c)
	}
}
