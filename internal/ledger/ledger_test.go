// ABOUTME: Tests for Capture, reconciliation and export/import.
// ABOUTME: Capture must leave no trace on failure or cancellation.
package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/harperreed/deficit/internal/cache"
	"github.com/harperreed/deficit/internal/models"
	"github.com/harperreed/deficit/internal/storage"
)

func withKey(t *testing.T, f *fixture) {
	t.Helper()
	_, err := f.ledger.Settings.UpdateAIConfig(AIConfigPatch{APIKey: strPtr("sk-test-1234")})
	require.NoError(t, err)
}

func foodEntries(t *testing.T, s storage.Store) []storage.Entry {
	t.Helper()
	entries, err := s.Entries(storage.FoodPrefix)
	require.NoError(t, err)
	return entries
}

func TestCaptureBooksResult(t *testing.T) {
	analyzer := &fakeAnalyzer{result: &models.AnalysisResult{Foods: []models.FoodItem{
		{Name: "Ramen", Calories: 650, Macros: models.Macros{Protein: 25, Carbs: 80, Fat: 22}},
	}}}
	f := setupWithProfile(t, WithAnalyzer(analyzer))
	withKey(t, f)

	rec, err := f.ledger.Capture(context.Background(), testToday, "data:image/png;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, 650.0, rec.TotalCalories)
	assert.Equal(t, "thumb:data:image/png;base64,AAAA", rec.Thumbnail)
	assert.Equal(t, "sk-test-1234", analyzer.gotCfg.APIKey)
	assert.Equal(t, models.DefaultModel, analyzer.gotCfg.Model)

	summary, err := f.ledger.Daily.GetOrCreate(testToday)
	require.NoError(t, err)
	assert.Equal(t, 650.0, summary.TotalIntake)
}

func TestCaptureRequiresAPIKey(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	f := setupWithProfile(t, WithAnalyzer(analyzer))

	_, err := f.ledger.Capture(context.Background(), testToday, "img")
	assert.ErrorIs(t, err, ErrConfigMissing)
	assert.Zero(t, analyzer.calls, "no network call without a key")
	assert.Empty(t, foodEntries(t, f.store))
}

func TestCaptureCanceledLeavesNoTrace(t *testing.T) {
	analyzer := &fakeAnalyzer{block: true}
	f := setupWithProfile(t, WithAnalyzer(analyzer))
	withKey(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.ledger.Capture(ctx, testToday, "img")
	require.Error(t, err)
	assert.True(t, IsCanceled(err))

	assert.Empty(t, foodEntries(t, f.store))
	_, err = f.store.Get(storage.DailyKey(testToday))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCaptureAnalyzerFailureLeavesNoTrace(t *testing.T) {
	boom := errors.New("upstream 500")
	f := setupWithProfile(t, WithAnalyzer(&fakeAnalyzer{err: boom}))
	withKey(t, f)

	_, err := f.ledger.Capture(context.Background(), testToday, "img")
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsCanceled(err))
	assert.Empty(t, foodEntries(t, f.store))
}

func TestCaptureEmptyAnalysisLeavesNoTrace(t *testing.T) {
	f := setupWithProfile(t, WithAnalyzer(&fakeAnalyzer{}))
	withKey(t, f)

	rec, err := f.ledger.Capture(context.Background(), testToday, "img")
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Empty(t, foodEntries(t, f.store))
}

func TestCaptureWithoutAnalyzer(t *testing.T) {
	f := setupWithProfile(t)
	withKey(t, f)

	_, err := f.ledger.Capture(context.Background(), testToday, "img")
	assert.Error(t, err)
}

func TestReconcileRepairsDrift(t *testing.T) {
	f := setupWithProfile(t)
	l := f.ledger

	_, err := l.Food.AddRecord(testToday, meal(item("Pasta", 500, 15, 70, 12)), "")
	require.NoError(t, err)

	_, err = l.Daily.ApplyDelta(testToday, func(s models.DailySummary) models.DailySummary {
		s.TotalIntake = 1200
		return s
	})
	require.NoError(t, err)

	repair, err := l.Reconcile(testToday)
	require.NoError(t, err)
	assert.True(t, repair.Changed())
	assert.Equal(t, 1, repair.Records)
	assert.Equal(t, 1200.0, repair.Before.TotalIntake)
	assert.Equal(t, 500.0, repair.After.TotalIntake)
	assertInvariants(t, repair.After)

	again, err := l.Reconcile(testToday)
	require.NoError(t, err)
	assert.False(t, again.Changed(), "second pass is a no-op")
}

func TestReconcileAllCoversOrphanRecords(t *testing.T) {
	f := setupWithProfile(t)
	l := f.ledger

	// A record whose summary write never happened.
	orphan := models.NewFoodRecord("2024-10-20", meal(item("Pizza", 800, 30, 90, 35)), "", f.clock.Now())
	require.NoError(t, storage.SetJSON(f.store, storage.FoodKey(orphan.ID), orphan))

	// A summary whose records were lost.
	stale := models.DailySummary{Date: "2024-10-21", BMR: 1649, TotalIntake: 300, TargetSnapshot: 500}.Recompute()
	require.NoError(t, storage.SetJSON(f.store, storage.DailyKey(stale.Date), stale))

	repairs, err := l.ReconcileAll()
	require.NoError(t, err)
	require.Len(t, repairs, 2)

	assert.Equal(t, "2024-10-20", repairs[0].Date)
	assert.Equal(t, 800.0, repairs[0].After.TotalIntake)
	assert.Equal(t, "2024-10-21", repairs[1].Date)
	assert.Equal(t, 0.0, repairs[1].After.TotalIntake)

	summary, err := l.Daily.GetOrCreate("2024-10-20")
	require.NoError(t, err)
	assert.Equal(t, 800.0, summary.TotalIntake)
}

func seedForExport(t *testing.T, f *fixture) {
	t.Helper()
	withKey(t, f)
	_, err := f.ledger.Food.AddRecord(testToday, meal(item("Salad", 220, 8, 12, 15)), "img")
	require.NoError(t, err)
	_, err = f.ledger.Daily.SetActiveCalories(testToday, 350)
	require.NoError(t, err)
}

func TestExportImportRoundTrip(t *testing.T) {
	src := setupWithProfile(t)
	seedForExport(t, src)

	raw, err := src.ledger.ExportJSON()
	require.NoError(t, err)

	dstStore, err := storage.OpenBadgerInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { dstStore.Close() })
	dst := New(dstStore, cache.New(cache.DefaultTTL), WithClock(src.clock.Now))

	result, err := dst.ImportJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, &ImportSummary{Settings: 1, Summaries: 1, Records: 1}, result)

	want, err := src.ledger.GetAllData()
	require.NoError(t, err)
	got, err := dst.GetAllData()
	require.NoError(t, err)
	assert.Equal(t, want.Settings, got.Settings)
	assert.Equal(t, want.Summaries, got.Summaries)
	assert.Equal(t, want.Records, got.Records)
	assert.Equal(t, "sk-test-1234", got.Settings.AIConfig.APIKey, "JSON backups keep the key")
}

func TestImportRejectsBadInput(t *testing.T) {
	f := setupLedger(t)

	_, err := f.ledger.ImportJSON([]byte("{not json"))
	assert.Error(t, err)

	_, err = f.ledger.ImportData(&ExportData{Summaries: []models.DailySummary{{Date: "tomorrow"}}})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.ledger.ImportData(&ExportData{Records: []models.FoodRecord{{Date: testToday}}})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestImportClearsCache(t *testing.T) {
	f := setupWithProfile(t)
	_, err := f.ledger.Daily.GetOrCreate(testToday)
	require.NoError(t, err)
	require.Positive(t, f.cache.Len())

	_, err = f.ledger.ImportData(&ExportData{})
	require.NoError(t, err)
	assert.Zero(t, f.cache.Len())
}

func TestExportYAMLRedacts(t *testing.T) {
	f := setupWithProfile(t)
	seedForExport(t, f)

	raw, err := f.ledger.ExportYAML()
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk-test-1234")
	assert.Contains(t, string(raw), "****1234")

	var data ExportData
	require.NoError(t, yaml.Unmarshal(raw, &data))
	require.Len(t, data.Records, 1)
	assert.Empty(t, data.Records[0].Thumbnail)
	assert.Equal(t, "Salad", data.Records[0].Items[0].Name)
}

func TestExportMarkdown(t *testing.T) {
	f := setupWithProfile(t)
	seedForExport(t, f)

	md, err := f.ledger.ExportMarkdown("")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(md, "# Deficit Export - 2024-11-01"))
	assert.Contains(t, md, "| 2024-11-01 | 1649 | 350 | 220 | 1779 | 500 | yes |")
	assert.Contains(t, md, "Salad")

	later, err := f.ledger.ExportMarkdown("2024-12-01")
	require.NoError(t, err)
	assert.NotContains(t, later, "Salad")
}
