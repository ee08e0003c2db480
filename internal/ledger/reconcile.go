// ABOUTME: Rescan-and-recompute repair for summaries that drifted from their records.
// ABOUTME: Rebuilds intake and macro totals from the records that actually exist.
package ledger

import (
	"math"
	"slices"

	"github.com/harperreed/deficit/internal/models"
)

// intakeEpsilon absorbs float noise from incremental sums.
const intakeEpsilon = 1e-6

// Repair describes one reconciled date.
type Repair struct {
	Date    string              `json:"date"`
	Records int                 `json:"records"`
	Before  models.DailySummary `json:"before"`
	After   models.DailySummary `json:"after"`
}

// Changed reports whether the totals moved.
func (r Repair) Changed() bool {
	return !closeEnough(r.Before.TotalIntake, r.After.TotalIntake) ||
		!closeEnough(r.Before.TotalMacros.Protein, r.After.TotalMacros.Protein) ||
		!closeEnough(r.Before.TotalMacros.Carbs, r.After.TotalMacros.Carbs) ||
		!closeEnough(r.Before.TotalMacros.Fat, r.After.TotalMacros.Fat)
}

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) < intakeEpsilon
}

type totals struct {
	records  int
	calories float64
	macros   models.Macros
}

// Reconcile recomputes date's intake and macros from its records. The date
// stays locked from listing to write so a concurrent add is counted once.
func (l *Ledger) Reconcile(date string) (Repair, error) {
	if _, err := models.ParseDate(date); err != nil {
		return Repair{}, err
	}

	unlock := l.Daily.locks.Lock(date)
	defer unlock()

	records, err := l.Food.ListForDate(date)
	if err != nil {
		return Repair{}, err
	}

	var t totals
	for _, r := range records {
		t.records++
		t.calories += r.TotalCalories
		t.macros = t.macros.Add(r.TotalMacros)
	}
	return l.applyTotalsLocked(date, t)
}

// ReconcileAll reconciles every date that has a summary or a record.
func (l *Ledger) ReconcileAll() ([]Repair, error) {
	records, err := l.Food.All()
	if err != nil {
		return nil, err
	}
	summaries, err := l.Daily.Summaries()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, s := range summaries {
		seen[s.Date] = true
	}
	for _, r := range records {
		seen[r.Date] = true
	}

	dates := make([]string, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	slices.Sort(dates)

	repairs := make([]Repair, 0, len(dates))
	for _, d := range dates {
		repair, err := l.Reconcile(d)
		if err != nil {
			return repairs, err
		}
		repairs = append(repairs, repair)
	}
	return repairs, nil
}

func (l *Ledger) applyTotalsLocked(date string, t totals) (Repair, error) {
	var before models.DailySummary
	after, err := l.Daily.applyDeltaLocked(date, func(s models.DailySummary) models.DailySummary {
		before = s
		s.TotalIntake = t.calories
		s.TotalMacros = t.macros
		return s
	})
	if err != nil {
		return Repair{}, err
	}

	repair := Repair{Date: date, Records: t.records, Before: before, After: after}
	if repair.Changed() {
		l.env.log.Info().Str("date", date).
			Float64("from", before.TotalIntake).Float64("to", after.TotalIntake).
			Msg("reconciled summary")
	}
	return repair, nil
}
