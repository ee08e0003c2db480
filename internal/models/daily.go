// ABOUTME: DailySummary aggregate, Macros, and the derived MonthlyStat view.
// ABOUTME: Holds the burn/intake/net invariants every mutation must restore.
package models

import (
	"fmt"
	"time"
)

// DateLayout is the ledger date key format.
const DateLayout = "2006-01-02"

// DateString formats t as a ledger date in t's own location.
func DateString(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate validates a YYYY-MM-DD ledger date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q (use YYYY-MM-DD)", ErrValidation, s)
	}
	return t, nil
}

// MonthPrefix returns the YYYY-MM prefix shared by every date in a month.
func MonthPrefix(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// Macros are grams of protein, carbohydrate and fat.
type Macros struct {
	Protein float64 `json:"protein" yaml:"protein"`
	Carbs   float64 `json:"carbs" yaml:"carbs"`
	Fat     float64 `json:"fat" yaml:"fat"`
}

// Add returns the per-field sum.
func (m Macros) Add(o Macros) Macros {
	return Macros{
		Protein: m.Protein + o.Protein,
		Carbs:   m.Carbs + o.Carbs,
		Fat:     m.Fat + o.Fat,
	}
}

// SubClamped subtracts per field, never going below zero.
func (m Macros) SubClamped(o Macros) Macros {
	return Macros{
		Protein: clampSub(m.Protein, o.Protein),
		Carbs:   clampSub(m.Carbs, o.Carbs),
		Fat:     clampSub(m.Fat, o.Fat),
	}
}

func clampSub(a, b float64) float64 {
	if a-b < 0 {
		return 0
	}
	return a - b
}

// DailySummary is the per-date energy balance, keyed daily_<date>.
type DailySummary struct {
	Date           string  `json:"date" yaml:"date"`
	BMR            float64 `json:"bmr" yaml:"bmr"`
	ActiveCalories float64 `json:"activeCalories" yaml:"active_calories"`
	TotalIntake    float64 `json:"totalIntake" yaml:"total_intake"`
	TotalBurn      float64 `json:"totalBurn" yaml:"total_burn"`
	NetCalories    float64 `json:"netCalories" yaml:"net_calories"`
	TargetSnapshot float64 `json:"targetSnapshot" yaml:"target_snapshot"`
	TotalMacros    Macros  `json:"totalMacros" yaml:"total_macros"`
}

// NewDailySummary seeds an empty day from the current settings.
func NewDailySummary(date string, s UserSettings) DailySummary {
	d := DailySummary{
		Date:           date,
		BMR:            float64(s.Computed.BMR),
		TargetSnapshot: float64(s.Goals.TargetDeficit),
	}
	return d.Recompute()
}

// Recompute restores totalBurn = bmr + active and net = burn - intake.
func (d DailySummary) Recompute() DailySummary {
	d.TotalBurn = d.BMR + d.ActiveCalories
	d.NetCalories = d.TotalBurn - d.TotalIntake
	return d
}

// AddIntake books a meal onto the day.
func (d DailySummary) AddIntake(calories float64, macros Macros) DailySummary {
	d.TotalIntake += calories
	d.TotalMacros = d.TotalMacros.Add(macros)
	return d.Recompute()
}

// RemoveIntake reverses AddIntake, clamped at zero to absorb prior drift.
func (d DailySummary) RemoveIntake(calories float64, macros Macros) DailySummary {
	d.TotalIntake = clampSub(d.TotalIntake, calories)
	d.TotalMacros = d.TotalMacros.SubClamped(macros)
	return d.Recompute()
}

// MonthlyStat is one calendar cell; never persisted.
type MonthlyStat struct {
	Date           string  `json:"date" yaml:"date"`
	NetCalories    float64 `json:"netCalories" yaml:"net_calories"`
	TargetSnapshot float64 `json:"targetSnapshot" yaml:"target_snapshot"`
	IsSuccess      bool    `json:"isSuccess" yaml:"is_success"`
}

// Stat derives the calendar view of a summary.
func (d DailySummary) Stat() MonthlyStat {
	return MonthlyStat{
		Date:           d.Date,
		NetCalories:    d.NetCalories,
		TargetSnapshot: d.TargetSnapshot,
		IsSuccess:      d.NetCalories >= d.TargetSnapshot,
	}
}
