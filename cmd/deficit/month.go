// ABOUTME: CLI command for the monthly success calendar.
// ABOUTME: Prints each recorded day's net calories against its target.
package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var monthCmd = &cobra.Command{
	Use:     "month [YYYY-MM]",
	Aliases: []string{"cal", "stats"},
	Short:   "Show a month of results",
	Long: `Show every recorded day of a month with its net calories and whether
the target deficit was met.

EXAMPLES:

  deficit month             # This month
  deficit month 2024-11     # November 2024`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var value string
		if len(args) == 1 {
			value = args[0]
		}
		year, month, err := parseMonth(value, time.Now())
		if err != nil {
			return err
		}

		stats, err := ledg.Daily.MonthlyStats(year, month)
		if err != nil {
			return err
		}
		if len(stats) == 0 {
			fmt.Printf("No days recorded in %04d-%02d.\n", year, month)
			return nil
		}

		hits := 0
		for _, s := range stats {
			row := fmt.Sprintf("%s %7.0f / %.0f", s.Date, s.NetCalories, s.TargetSnapshot)
			if s.IsSuccess {
				hits++
				color.Green("%s ✓", row)
			} else {
				fmt.Printf("%s %s\n", row, faint.Sprint("✗"))
			}
		}
		fmt.Println()
		fmt.Printf("%d of %d days on target\n", hits, len(stats))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(monthCmd)
}
