// ABOUTME: Export and import of the whole ledger.
// ABOUTME: JSON for backup/restore, YAML and Markdown for reading.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harperreed/deficit/internal/models"
	"github.com/harperreed/deficit/internal/storage"
)

const exportVersion = "1.0"

// ExportData is the full backup format.
type ExportData struct {
	Version    string                `json:"version" yaml:"version"`
	ExportedAt time.Time             `json:"exported_at" yaml:"exported_at"`
	Tool       string                `json:"tool" yaml:"tool"`
	Settings   *models.UserSettings  `json:"settings,omitempty" yaml:"settings,omitempty"`
	Summaries  []models.DailySummary `json:"summaries" yaml:"summaries"`
	Records    []models.FoodRecord   `json:"records" yaml:"records"`
}

// ImportSummary counts what an import wrote.
type ImportSummary struct {
	Settings  int
	Summaries int
	Records   int
}

// GetAllData collects everything in the store.
func (l *Ledger) GetAllData() (*ExportData, error) {
	data := &ExportData{
		Version:    exportVersion,
		ExportedAt: l.env.now(),
		Tool:       "deficit",
	}

	settings, err := l.Settings.load()
	switch {
	case err == nil:
		data.Settings = settings
	case !errors.Is(err, ErrConfigMissing):
		return nil, err
	}

	if data.Summaries, err = l.Daily.Summaries(); err != nil {
		return nil, err
	}
	if data.Records, err = l.Food.All(); err != nil {
		return nil, err
	}
	return data, nil
}

// ExportJSON exports everything, secrets and thumbnails included.
func (l *Ledger) ExportJSON() ([]byte, error) {
	data, err := l.GetAllData()
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(data, "", "  ")
}

// ExportYAML exports a readable copy: the API key is redacted and
// thumbnails are dropped.
func (l *Ledger) ExportYAML() ([]byte, error) {
	data, err := l.GetAllData()
	if err != nil {
		return nil, err
	}

	if data.Settings != nil {
		s := *data.Settings
		s.AIConfig = s.AIConfig.Redacted()
		data.Settings = &s
	}
	for i := range data.Records {
		data.Records[i].Thumbnail = ""
	}

	return yaml.Marshal(data)
}

// ExportMarkdown renders daily balances and meals since the given date ("" for all).
func (l *Ledger) ExportMarkdown(since string) (string, error) {
	data, err := l.GetAllData()
	if err != nil {
		return "", err
	}

	meals := make(map[string][]models.FoodRecord)
	for _, r := range data.Records {
		meals[r.Date] = append(meals[r.Date], r)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Deficit Export - %s\n\n", models.DateString(data.ExportedAt)))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", data.ExportedAt.Format(time.RFC3339)))

	sb.WriteString("## Daily balance\n\n")
	sb.WriteString("| Date | BMR | Active | Intake | Net | Target | Met |\n")
	sb.WriteString("|------|-----|--------|--------|-----|--------|-----|\n")
	for _, s := range data.Summaries {
		if since != "" && s.Date < since {
			continue
		}
		met := "no"
		if s.Stat().IsSuccess {
			met = "yes"
		}
		sb.WriteString(fmt.Sprintf("| %s | %.0f | %.0f | %.0f | %.0f | %.0f | %s |\n",
			s.Date, s.BMR, s.ActiveCalories, s.TotalIntake, s.NetCalories, s.TargetSnapshot, met))
	}

	sb.WriteString("\n## Meals\n\n")
	for _, s := range data.Summaries {
		if since != "" && s.Date < since {
			continue
		}
		records := meals[s.Date]
		if len(records) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("### %s\n\n", s.Date))
		sb.WriteString("| Time | Foods | kcal | P | C | F |\n")
		sb.WriteString("|------|-------|------|---|---|---|\n")
		for _, r := range records {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.0f | %.1f | %.1f | %.1f |\n",
				time.UnixMilli(r.Timestamp).Format("15:04"),
				strings.Join(models.AnalysisResult{Foods: r.Items}.Names(), ", "),
				r.TotalCalories, r.TotalMacros.Protein, r.TotalMacros.Carbs, r.TotalMacros.Fat))
		}
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

// ImportData writes every entity in data, overwriting existing keys, and
// drops all cached copies.
func (l *Ledger) ImportData(data *ExportData) (*ImportSummary, error) {
	summary := &ImportSummary{}
	defer l.env.cache.Clear()

	if data.Settings != nil {
		if err := storage.SetJSON(l.env.store, storage.SettingsKey, data.Settings); err != nil {
			return summary, fmt.Errorf("import settings: %w", err)
		}
		summary.Settings++
	}

	for _, s := range data.Summaries {
		if _, err := models.ParseDate(s.Date); err != nil {
			return summary, fmt.Errorf("import summary: %w", err)
		}
		if err := storage.SetJSON(l.env.store, storage.DailyKey(s.Date), s.Recompute()); err != nil {
			return summary, fmt.Errorf("import summary %s: %w", s.Date, err)
		}
		summary.Summaries++
	}

	for _, r := range data.Records {
		if r.ID == "" {
			return summary, fmt.Errorf("import record: %w: missing id", models.ErrValidation)
		}
		if err := storage.SetJSON(l.env.store, storage.FoodKey(r.ID), r); err != nil {
			return summary, fmt.Errorf("import record %s: %w", r.ID, err)
		}
		summary.Records++
	}

	return summary, nil
}

// ImportJSON imports a JSON export.
func (l *Ledger) ImportJSON(raw []byte) (*ImportSummary, error) {
	var data ExportData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}
	return l.ImportData(&data)
}
