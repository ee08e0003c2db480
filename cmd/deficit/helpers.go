// ABOUTME: Shared helpers for CLI commands: date flags, image loading, and row formatting.
// ABOUTME: Keeps the command files focused on flag wiring and output.
package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/harperreed/deficit/internal/models"
)

// maxImageBytes bounds what add will read from disk.
const maxImageBytes = 20 << 20

// BMR edits outside this range are rejected as typos.
const (
	minBMR = 500
	maxBMR = 5000
)

var faint = color.New(color.Faint)

// resolveDate turns a --date flag value into a ledger date. Empty means today.
func resolveDate(value string, now time.Time) (string, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "today":
		return models.DateString(now), nil
	case "yesterday":
		return models.DateString(now.AddDate(0, 0, -1)), nil
	}
	if _, err := models.ParseDate(value); err != nil {
		return "", fmt.Errorf("invalid date %q (use YYYY-MM-DD, today or yesterday)", value)
	}
	return value, nil
}

// parseMonth reads YYYY-MM, defaulting to the month containing now.
func parseMonth(value string, now time.Time) (int, int, error) {
	if value == "" {
		return now.Year(), int(now.Month()), nil
	}
	t, err := time.Parse("2006-01", value)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q (use YYYY-MM)", value)
	}
	return t.Year(), int(t.Month()), nil
}

// encodeImage reads a photo and returns it as a data URL.
func encodeImage(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if info.Size() > maxImageBytes {
		return "", fmt.Errorf("image too large: %d bytes (max %d)", info.Size(), maxImageBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%s does not look like an image (%s)", path, mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

// itemNames joins the food names of a record for one-line listings.
func itemNames(r models.FoodRecord) string {
	names := make([]string, 0, len(r.Items))
	for _, it := range r.Items {
		names = append(names, it.Name)
	}
	return strings.Join(names, ", ")
}

func formatRecord(r models.FoodRecord) string {
	at := time.UnixMilli(r.Timestamp).Format("15:04")
	return fmt.Sprintf("%s %s %s %6.0f kcal  %s",
		faint.Sprint(r.ShortID()),
		faint.Sprint(at),
		padRight(truncate(itemNames(r), 36), 36),
		r.TotalCalories,
		faint.Sprintf("P%.0f C%.0f F%.0f", r.TotalMacros.Protein, r.TotalMacros.Carbs, r.TotalMacros.Fat))
}

func printSummary(s models.DailySummary) {
	fmt.Printf("%s\n", color.New(color.Bold).Sprint(s.Date))
	fmt.Printf("  BMR        %6.0f\n", s.BMR)
	fmt.Printf("  Active     %6.0f\n", s.ActiveCalories)
	fmt.Printf("  Burn       %6.0f\n", s.TotalBurn)
	fmt.Printf("  Intake     %6.0f\n", s.TotalIntake)
	fmt.Printf("  Macros     %s\n", faint.Sprintf("protein %.0fg  carbs %.0fg  fat %.0fg",
		s.TotalMacros.Protein, s.TotalMacros.Carbs, s.TotalMacros.Fat))

	line := fmt.Sprintf("  Net        %6.0f / target %.0f", s.NetCalories, s.TargetSnapshot)
	if s.Stat().IsSuccess {
		color.Green("%s ✓", line)
	} else {
		color.Yellow("%s (%.0f to go)", line, s.TargetSnapshot-s.NetCalories)
	}
}
