// ABOUTME: Settings service: BMR formula, profile save, BMR mode switching, AI config.
// ABOUTME: Reads are cache-aside; every write goes through the store before the cache.
package ledger

import (
	"errors"
	"fmt"
	"math"

	"github.com/harperreed/deficit/internal/metrics"
	"github.com/harperreed/deficit/internal/models"
	"github.com/harperreed/deficit/internal/storage"
)

// CalculateBMR is the Mifflin-St Jeor estimate in kcal/day.
func CalculateBMR(gender models.Gender, weight, height float64, age int) float64 {
	base := 10*weight + 6.25*height - 5*float64(age)
	if gender == models.GenderMale {
		return base + 5
	}
	return base - 161
}

func formulaBMR(p models.Profile) float64 {
	return CalculateBMR(p.Gender, p.Weight, p.Height, p.Age)
}

// Settings owns the USER_SETTINGS record.
type Settings struct {
	env
	daily *Daily
}

// Get returns the settings, or ErrConfigMissing before the first profile save.
func (s *Settings) Get() (models.UserSettings, error) {
	if cached, ok := s.cache.GetSettings(); ok {
		return cached, nil
	}

	stored, err := s.load()
	if err != nil {
		return models.UserSettings{}, err
	}
	s.cache.SetSettings(*stored)
	return *stored, nil
}

func (s *Settings) load() (*models.UserSettings, error) {
	stored, err := storage.GetJSON[models.UserSettings](s.store, storage.SettingsKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrConfigMissing
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return stored, nil
}

func (s *Settings) save(op string, settings models.UserSettings) error {
	err := storage.SetJSON(s.store, storage.SettingsKey, settings)
	metrics.LedgerMutation(op, err)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// ProfileOptions are the optional parts of a profile save. Nil means "keep".
type ProfileOptions struct {
	TargetDeficit *int
	UseManualBMR  *bool
	ManualBMR     *int
}

// SaveProfile stores p and resolves the effective BMR: an explicit manual
// value when switching into manual mode, else the existing manual BMR when
// already manual and not told otherwise, else the formula.
func (s *Settings) SaveProfile(p models.Profile, opts ProfileOptions) (models.UserSettings, error) {
	if err := p.Validate(); err != nil {
		return models.UserSettings{}, err
	}

	existing, err := s.load()
	if err != nil && !errors.Is(err, ErrConfigMissing) {
		return models.UserSettings{}, err
	}

	var bmr float64
	switch {
	case opts.UseManualBMR != nil && *opts.UseManualBMR && opts.ManualBMR != nil:
		bmr = float64(*opts.ManualBMR)
	case (opts.UseManualBMR == nil || *opts.UseManualBMR) && existing != nil &&
		existing.BMRSettings.UseManualBMR && existing.Computed.BMR != 0:
		bmr = float64(existing.Computed.BMR)
	default:
		bmr = formulaBMR(p)
	}

	p.UpdatedAt = s.now().UnixMilli()
	next := models.UserSettings{
		Profile:  p,
		Computed: models.Computed{BMR: int(math.Round(bmr))},
		Goals:    models.Goals{TargetDeficit: models.DefaultTargetDeficit},
		AIConfig: models.AIConfig{BaseURL: models.DefaultBaseURL, Model: models.DefaultModel},
	}
	if existing != nil {
		next.Goals = existing.Goals
		next.AIConfig = existing.AIConfig
		next.BMRSettings = existing.BMRSettings
	}
	if opts.TargetDeficit != nil {
		next.Goals.TargetDeficit = *opts.TargetDeficit
	}
	if opts.UseManualBMR != nil {
		next.BMRSettings.UseManualBMR = *opts.UseManualBMR
	}

	if err := s.save("save_profile", next); err != nil {
		return models.UserSettings{}, err
	}
	s.cache.SetSettings(next)
	s.cache.InvalidateDashboard(s.today())

	s.log.Debug().Int("bmr", next.Computed.BMR).Bool("manual", next.BMRSettings.UseManualBMR).Msg("profile saved")
	return next, nil
}

// UpdateBMRSettings switches BMR mode. On a transition the BMR in effect so
// far is frozen into today's summary before computed.bmr changes; leaving
// manual mode recomputes the formula value.
func (s *Settings) UpdateBMRSettings(useManual bool) (models.UserSettings, error) {
	existing, err := s.Get()
	if err != nil {
		return models.UserSettings{}, err
	}

	old := existing.BMRSettings.UseManualBMR
	bmr := float64(existing.Computed.BMR)
	if old && !useManual {
		bmr = formulaBMR(existing.Profile)
	}

	today := s.today()
	if old != useManual {
		if err := s.daily.SnapshotBMR(today, existing.Computed.BMR); err != nil {
			return models.UserSettings{}, err
		}
	}

	existing.BMRSettings.UseManualBMR = useManual
	existing.Computed.BMR = int(math.Round(bmr))

	if err := s.save("update_bmr_settings", existing); err != nil {
		return models.UserSettings{}, err
	}
	s.cache.InvalidateSettings()
	s.cache.InvalidateDashboard(today)

	s.log.Debug().Bool("from", old).Bool("to", useManual).Int("bmr", existing.Computed.BMR).Msg("bmr mode updated")
	return existing, nil
}

// AIConfigPatch holds the AI config fields to overwrite. Nil means "keep".
type AIConfigPatch struct {
	APIKey  *string
	BaseURL *string
	Model   *string
}

// UpdateAIConfig shallow-merges patch into the existing AI config.
func (s *Settings) UpdateAIConfig(patch AIConfigPatch) (models.UserSettings, error) {
	existing, err := s.Get()
	if err != nil {
		return models.UserSettings{}, err
	}

	if patch.APIKey != nil {
		existing.AIConfig.APIKey = *patch.APIKey
	}
	if patch.BaseURL != nil {
		existing.AIConfig.BaseURL = *patch.BaseURL
	}
	if patch.Model != nil {
		existing.AIConfig.Model = *patch.Model
	}

	if err := s.save("update_ai_config", existing); err != nil {
		return models.UserSettings{}, err
	}
	s.cache.InvalidateSettings()
	return existing, nil
}
