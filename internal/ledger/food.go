// ABOUTME: Food record service: add, list, resolve and delete meal records.
// ABOUTME: Record writes come first and the owning summary is adjusted second.
package ledger

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/harperreed/deficit/internal/metrics"
	"github.com/harperreed/deficit/internal/models"
	"github.com/harperreed/deficit/internal/storage"
)

// Food owns the food_<id> records.
type Food struct {
	env
	daily     *Daily
	thumbnail ThumbnailFunc
}

// AddRecord books result on date. If the record is written but the summary
// update fails, the record is left behind unaccounted and the error is
// returned; Reconcile repairs that state.
func (f *Food) AddRecord(date string, result models.AnalysisResult, image string) (*models.FoodRecord, error) {
	if _, err := models.ParseDate(date); err != nil {
		return nil, err
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	// A summary cannot be created without settings; check before writing anything.
	if _, err := f.daily.settings.Get(); err != nil {
		return nil, err
	}

	thumb, err := f.thumbnail(image)
	if err != nil {
		return nil, fmt.Errorf("make thumbnail: %w", err)
	}

	unlock := f.daily.locks.Lock(date)
	defer unlock()

	record := models.NewFoodRecord(date, result, thumb, f.now())
	err = storage.SetJSON(f.store, storage.FoodKey(record.ID), record)
	metrics.LedgerMutation("add_record", err)
	if err != nil {
		return nil, fmt.Errorf("save record: %w", err)
	}

	calories, macros := record.TotalCalories, record.TotalMacros
	if _, err := f.daily.applyDeltaLocked(date, func(s models.DailySummary) models.DailySummary {
		return s.AddIntake(calories, macros)
	}); err != nil {
		f.log.Error().Err(err).Str("record_id", record.ID).Str("date", date).Msg("record saved but summary not updated")
		return nil, err
	}

	f.log.Debug().Str("record_id", record.ID).Str("date", date).Float64("intake", calories).Msg("record added")
	return record, nil
}

// ListForDate returns the records booked on date, newest first.
func (f *Food) ListForDate(date string) ([]models.FoodRecord, error) {
	all, err := f.All()
	if err != nil {
		return nil, err
	}

	var out []models.FoodRecord
	for _, r := range all {
		if r.Date == date {
			out = append(out, r)
		}
	}

	slices.SortStableFunc(out, func(a, b models.FoodRecord) int {
		if c := cmp.Compare(b.Timestamp, a.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out, nil
}

// All returns every stored record in key order.
func (f *Food) All() ([]models.FoodRecord, error) {
	entries, err := f.store.Entries(storage.FoodPrefix)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	out := make([]models.FoodRecord, 0, len(entries))
	for _, e := range entries {
		var r models.FoodRecord
		if err := json.Unmarshal(e.Value, &r); err != nil {
			f.log.Warn().Err(err).Str("key", e.Key).Msg("skipping unreadable record")
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Get loads the record with the exact id.
func (f *Food) Get(id string) (*models.FoodRecord, error) {
	r, err := storage.GetJSON[models.FoodRecord](f.store, storage.FoodKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", id, err)
	}
	return r, nil
}

// Resolve finds a record by full id, id prefix, or short id (the leading
// characters of the uuid part). Ambiguous prefixes are an error.
func (f *Food) Resolve(idOrPrefix string) (*models.FoodRecord, error) {
	if idOrPrefix == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	if r, err := f.Get(idOrPrefix); err == nil || !errors.Is(err, ErrNotFound) {
		return r, err
	}

	all, err := f.All()
	if err != nil {
		return nil, err
	}

	var matches []models.FoodRecord
	for _, r := range all {
		uuidPart := r.ID[strings.LastIndex(r.ID, "_")+1:]
		if strings.HasPrefix(r.ID, idOrPrefix) || strings.HasPrefix(uuidPart, idOrPrefix) {
			matches = append(matches, r)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, idOrPrefix)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous id prefix %q matches %d records", idOrPrefix, len(matches))
	}
}

// DeleteRecord removes the record and subtracts it from its summary, clamped at zero.
// Of two concurrent deletes of the same id, exactly one succeeds.
func (f *Food) DeleteRecord(id string) (*models.FoodRecord, error) {
	peek, err := f.Get(id)
	if err != nil {
		return nil, err
	}

	unlock := f.daily.locks.Lock(peek.Date)
	defer unlock()

	// Records are immutable, so the date seen before locking is still the owner.
	record, err := f.Get(id)
	if err != nil {
		return nil, err
	}

	err = f.store.Delete(storage.FoodKey(id))
	metrics.LedgerMutation("delete_record", err)
	if err != nil {
		return nil, fmt.Errorf("delete record: %w", err)
	}

	calories, macros := record.TotalCalories, record.TotalMacros
	if _, err := f.daily.applyDeltaLocked(record.Date, func(s models.DailySummary) models.DailySummary {
		return s.RemoveIntake(calories, macros)
	}); err != nil {
		f.log.Error().Err(err).Str("record_id", id).Str("date", record.Date).Msg("record deleted but summary not updated")
		return nil, err
	}

	f.log.Debug().Str("record_id", id).Str("date", record.Date).Float64("intake", -calories).Msg("record deleted")
	return record, nil
}
