// ABOUTME: Daily ledger service owning one DailySummary per date.
// ABOUTME: Lazy creation, drift self-heal, direct edits, the ApplyDelta primitive and monthly rollups.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/harperreed/deficit/internal/metrics"
	"github.com/harperreed/deficit/internal/models"
	"github.com/harperreed/deficit/internal/storage"
)

// Daily owns the daily_<date> records. All read-modify-write cycles on a
// date hold that date's lock, so concurrent mutations never lose updates.
type Daily struct {
	env
	settings *Settings
	locks    *keyedMutex
}

// GetOrCreate returns the summary for date, creating it from current
// settings on first access. Stored summaries whose date or target snapshot
// has drifted are corrected in place.
func (d *Daily) GetOrCreate(date string) (models.DailySummary, error) {
	if _, err := models.ParseDate(date); err != nil {
		return models.DailySummary{}, err
	}
	if cached, ok := d.cache.GetDashboard(date); ok {
		return cached, nil
	}

	unlock := d.locks.Lock(date)
	defer unlock()
	return d.getOrCreateLocked(date)
}

func (d *Daily) getOrCreateLocked(date string) (models.DailySummary, error) {
	settings, err := d.settings.Get()
	if err != nil {
		return models.DailySummary{}, err
	}

	key := storage.DailyKey(date)
	stored, err := storage.GetJSON[models.DailySummary](d.store, key)

	var summary models.DailySummary
	changed := false
	switch {
	case errors.Is(err, storage.ErrNotFound):
		summary = models.NewDailySummary(date, settings)
		changed = true
	case err != nil:
		return models.DailySummary{}, fmt.Errorf("load summary %s: %w", date, err)
	default:
		summary = *stored
		if summary.Date != date {
			d.log.Info().Str("date", date).Str("stored_date", summary.Date).Msg("repairing summary date")
			summary.Date = date
			changed = true
		}
		if target := float64(settings.Goals.TargetDeficit); summary.TargetSnapshot != target {
			d.log.Info().Str("date", date).Float64("from", summary.TargetSnapshot).Float64("to", target).Msg("syncing target snapshot")
			summary.TargetSnapshot = target
			changed = true
		}
	}

	if changed {
		if err := d.save("create_summary", summary); err != nil {
			return models.DailySummary{}, err
		}
	}
	d.cache.SetDashboard(date, summary)
	return summary, nil
}

// loadLocked reads the stored summary for a mutation, creating it if absent.
func (d *Daily) loadLocked(date string) (models.DailySummary, error) {
	stored, err := storage.GetJSON[models.DailySummary](d.store, storage.DailyKey(date))
	if errors.Is(err, storage.ErrNotFound) {
		return d.getOrCreateLocked(date)
	}
	if err != nil {
		return models.DailySummary{}, fmt.Errorf("load summary %s: %w", date, err)
	}
	return *stored, nil
}

func (d *Daily) save(op string, summary models.DailySummary) error {
	err := storage.SetJSON(d.store, storage.DailyKey(summary.Date), summary)
	metrics.LedgerMutation(op, err)
	if err != nil {
		return fmt.Errorf("save summary %s: %w", summary.Date, err)
	}
	return nil
}

// mutate is the shared read-modify-write cycle behind every summary edit.
func (d *Daily) mutate(op, date string, fn func(models.DailySummary) models.DailySummary) (models.DailySummary, error) {
	if _, err := models.ParseDate(date); err != nil {
		return models.DailySummary{}, err
	}

	unlock := d.locks.Lock(date)
	defer unlock()
	return d.mutateLocked(op, date, fn)
}

// mutateLocked is mutate for callers already holding date's lock.
func (d *Daily) mutateLocked(op, date string, fn func(models.DailySummary) models.DailySummary) (models.DailySummary, error) {
	current, err := d.loadLocked(date)
	if err != nil {
		return models.DailySummary{}, err
	}

	next := fn(current).Recompute()
	next.Date = date
	if err := d.save(op, next); err != nil {
		return models.DailySummary{}, err
	}
	d.cache.SetDashboard(date, next)
	return next, nil
}

// SetActiveCalories records the day's active energy. Callers reject
// non-numeric input; negative values are refused here as a last guard.
func (d *Daily) SetActiveCalories(date string, kcal float64) (models.DailySummary, error) {
	if kcal < 0 || math.IsNaN(kcal) || math.IsInf(kcal, 0) {
		return models.DailySummary{}, fmt.Errorf("%w: active calories must be >= 0", models.ErrValidation)
	}
	return d.mutate("set_active", date, func(s models.DailySummary) models.DailySummary {
		s.ActiveCalories = kcal
		return s
	})
}

// SetBMR overrides the day's BMR snapshot. Range checks belong to the caller.
func (d *Daily) SetBMR(date string, bmr float64) (models.DailySummary, error) {
	return d.mutate("set_bmr", date, func(s models.DailySummary) models.DailySummary {
		s.BMR = bmr
		return s
	})
}

// ApplyDelta applies fn to the current summary and persists the result with
// burn and net recomputed. fn must be pure.
func (d *Daily) ApplyDelta(date string, fn func(models.DailySummary) models.DailySummary) (models.DailySummary, error) {
	return d.mutate("apply_delta", date, fn)
}

// applyDeltaLocked is ApplyDelta for callers that hold date's lock so a
// record write and its summary delta happen as one step.
func (d *Daily) applyDeltaLocked(date string, fn func(models.DailySummary) models.DailySummary) (models.DailySummary, error) {
	return d.mutateLocked("apply_delta", date, fn)
}

// SnapshotBMR freezes bmr into date's summary if that summary exists.
// Absent days are left absent; they will seed from settings when first read.
func (d *Daily) SnapshotBMR(date string, bmr int) error {
	unlock := d.locks.Lock(date)
	defer unlock()

	stored, err := storage.GetJSON[models.DailySummary](d.store, storage.DailyKey(date))
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load summary %s: %w", date, err)
	}

	summary := *stored
	summary.BMR = float64(bmr)
	summary = summary.Recompute()
	if err := d.save("snapshot_bmr", summary); err != nil {
		return err
	}
	d.cache.SetDashboard(date, summary)
	return nil
}

// MonthlyStats returns one stat per stored summary in the month, ascending by date.
func (d *Daily) MonthlyStats(year, month int) ([]models.MonthlyStat, error) {
	if month < 1 || month > 12 || year < 1 {
		return nil, fmt.Errorf("%w: invalid month %d-%d", models.ErrValidation, year, month)
	}
	prefix := models.MonthPrefix(year, month)

	entries, err := d.store.Entries(storage.DailyKey(prefix))
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}

	stats := make([]models.MonthlyStat, 0, len(entries))
	for _, e := range entries {
		summary, err := decodeSummary(e)
		if err != nil {
			d.log.Warn().Err(err).Str("key", e.Key).Msg("skipping unreadable summary")
			continue
		}
		stats = append(stats, summary.Stat())
	}

	slices.SortFunc(stats, func(a, b models.MonthlyStat) int {
		return strings.Compare(a.Date, b.Date)
	})
	return stats, nil
}

// Summaries returns every stored summary in ascending date order.
func (d *Daily) Summaries() ([]models.DailySummary, error) {
	entries, err := d.store.Entries(storage.DailyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}

	out := make([]models.DailySummary, 0, len(entries))
	for _, e := range entries {
		summary, err := decodeSummary(e)
		if err != nil {
			d.log.Warn().Err(err).Str("key", e.Key).Msg("skipping unreadable summary")
			continue
		}
		out = append(out, summary)
	}
	return out, nil
}

// decodeSummary reads a summary entry, taking its date from the key.
func decodeSummary(e storage.Entry) (models.DailySummary, error) {
	var s models.DailySummary
	if err := json.Unmarshal(e.Value, &s); err != nil {
		return s, err
	}
	s.Date = storage.DateFromKey(e.Key)
	return s, nil
}
