// ABOUTME: Tests for the HTTP API using httptest against a real in-memory ledger.
// ABOUTME: Covers routing, body validation and error-to-status mapping.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/deficit/internal/cache"
	"github.com/harperreed/deficit/internal/ledger"
	"github.com/harperreed/deficit/internal/logger"
	"github.com/harperreed/deficit/internal/models"
	"github.com/harperreed/deficit/internal/storage"
	"github.com/harperreed/deficit/internal/stream"
	"github.com/harperreed/deficit/internal/vision"
)

const today = "2024-11-01"

type stubAnalyzer struct {
	result *models.AnalysisResult
	err    error
}

func (s *stubAnalyzer) Analyze(ctx context.Context, _ models.AIConfig, _ string) (*models.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.result, s.err
}

type testAPI struct {
	ledger *ledger.Ledger
	router http.Handler
}

func newTestAPI(t *testing.T, analyzer ledger.Analyzer, withProfile bool) *testAPI {
	t.Helper()

	store, err := storage.OpenBadgerInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	now := func() time.Time { return time.Date(2024, 11, 1, 9, 30, 0, 0, time.Local) }
	opts := []ledger.Option{
		ledger.WithClock(now),
		ledger.WithThumbnailer(func(s string) (string, error) { return s, nil }),
	}
	if analyzer != nil {
		opts = append(opts, ledger.WithAnalyzer(analyzer))
	}
	l := ledger.New(store, cache.New(cache.DefaultTTL), opts...)

	if withProfile {
		_, err := l.Settings.SaveProfile(
			models.Profile{Gender: models.GenderMale, Age: 30, Height: 175, Weight: 70},
			ledger.ProfileOptions{},
		)
		require.NoError(t, err)
	}

	return &testAPI{ledger: l, router: NewHandler(l, logger.Nop()).Routes()}
}

func (a *testAPI) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthzAndMetrics(t *testing.T) {
	api := newTestAPI(t, nil, false)

	rec := api.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "deficit_http_requests_total")
}

func TestDashboardWithoutProfile(t *testing.T) {
	api := newTestAPI(t, nil, false)

	rec := api.do(t, http.MethodGet, "/api/dashboard", "")
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Error, "profile")
}

func TestDashboardDefaultsToToday(t *testing.T) {
	api := newTestAPI(t, nil, true)

	rec := api.do(t, http.MethodGet, "/api/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[Dashboard](t, rec)
	assert.Equal(t, today, got.Summary.Date)
	assert.Equal(t, 1649.0, got.Summary.BMR)
	assert.Empty(t, got.Records)
	assert.Contains(t, rec.Body.String(), `"records":[]`)

	rec = api.do(t, http.MethodGet, "/api/days/2024-10-30", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-10-30", decode[Dashboard](t, rec).Summary.Date)

	rec = api.do(t, http.MethodGet, "/api/dashboard?date=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetActive(t *testing.T) {
	api := newTestAPI(t, nil, true)

	rec := api.do(t, http.MethodPut, "/api/days/"+today+"/active", `{"calories":300}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[models.DailySummary](t, rec)
	assert.Equal(t, 300.0, got.ActiveCalories)
	assert.Equal(t, 1949.0, got.TotalBurn)

	for _, body := range []string{`{"calories":-5}`, `{}`, `not json`} {
		rec = api.do(t, http.MethodPut, "/api/days/"+today+"/active", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestSetBMRRange(t *testing.T) {
	api := newTestAPI(t, nil, true)

	rec := api.do(t, http.MethodPut, "/api/days/"+today+"/bmr", `{"bmr":1800}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1800.0, decode[models.DailySummary](t, rec).BMR)

	for _, body := range []string{`{"bmr":499}`, `{"bmr":5001}`} {
		rec = api.do(t, http.MethodPut, "/api/days/"+today+"/bmr", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestAddListDeleteFood(t *testing.T) {
	api := newTestAPI(t, nil, true)

	body := "```json\n" + `{"foods":[{"name":"Oatmeal","calories":310,"macros":{"protein":10,"carbs":54,"fat":6}}]}` + "\n```"
	rec := api.do(t, http.MethodPost, "/api/days/"+today+"/food", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.FoodRecord](t, rec)
	assert.Equal(t, 310.0, created.TotalCalories)

	rec = api.do(t, http.MethodGet, "/api/days/"+today+"/food", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.FoodRecord](t, rec), 1)

	rec = api.do(t, http.MethodGet, "/api/food/"+created.ShortID(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decode[models.FoodRecord](t, rec).ID)

	rec = api.do(t, http.MethodDelete, "/api/food/"+created.ShortID(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodDelete, "/api/food/"+created.ShortID(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/dashboard", "")
	assert.Equal(t, 0.0, decode[Dashboard](t, rec).Summary.TotalIntake)
}

func TestAddFoodRejectsInvalidAnalysis(t *testing.T) {
	api := newTestAPI(t, nil, true)

	for _, body := range []string{`{"foods":[]}`, `{"foods":[{"name":"x"}]}`, `garbage`} {
		rec := api.do(t, http.MethodPost, "/api/days/"+today+"/food", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestAnalyze(t *testing.T) {
	analyzer := &stubAnalyzer{result: &models.AnalysisResult{Foods: []models.FoodItem{{Name: "Taco", Calories: 210}}}}
	api := newTestAPI(t, analyzer, true)

	rec := api.do(t, http.MethodPost, "/api/days/"+today+"/analyze", `{"image":"data:image/png;base64,AAAA"}`)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code, "no API key configured yet")

	rec = api.do(t, http.MethodPut, "/api/settings/ai", `{"apiKey":"sk-secret-9876"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sk-secret-9876")

	rec = api.do(t, http.MethodPost, "/api/days/"+today+"/analyze", `{"image":"data:image/png;base64,AAAA"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 210.0, decode[models.FoodRecord](t, rec).TotalCalories)

	rec = api.do(t, http.MethodPost, "/api/days/"+today+"/analyze", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeCanceledRequestWritesNothing(t *testing.T) {
	analyzer := &stubAnalyzer{result: &models.AnalysisResult{Foods: []models.FoodItem{{Name: "Taco", Calories: 210}}}}
	api := newTestAPI(t, analyzer, true)
	_, err := api.ledger.Settings.UpdateAIConfig(ledger.AIConfigPatch{APIKey: strPtr("sk-1")})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/days/"+today+"/analyze", strings.NewReader(`{"image":"x"}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	assert.Equal(t, statusClientClosedRequest, rec.Code)
	records, err := api.ledger.Food.ListForDate(today)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMonthlyStatsRoute(t *testing.T) {
	api := newTestAPI(t, nil, true)

	rec := api.do(t, http.MethodGet, "/api/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/stats/2024/11", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[[]models.MonthlyStat](t, rec)
	require.Len(t, stats, 1)
	assert.True(t, stats[0].IsSuccess)

	rec = api.do(t, http.MethodGet, "/api/stats/2024/13", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = api.do(t, http.MethodGet, "/api/stats/x/1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/stats/1999/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestSettingsRoutes(t *testing.T) {
	api := newTestAPI(t, nil, false)

	rec := api.do(t, http.MethodGet, "/api/settings", "")
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	rec = api.do(t, http.MethodPut, "/api/settings/profile",
		`{"gender":"female","age":25,"height":165,"weight":60,"targetDeficit":400}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[models.UserSettings](t, rec)
	assert.Equal(t, 1345, got.Computed.BMR)
	assert.Equal(t, 400, got.Goals.TargetDeficit)

	rec = api.do(t, http.MethodPut, "/api/settings/profile", `{"gender":"female","age":25,"height":165,"weight":60,"manualBMR":100}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPut, "/api/settings/bmr-mode", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPut, "/api/settings/bmr-mode", `{"useManual":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.UserSettings](t, rec).BMRSettings.UseManualBMR)
}

func TestRepairRoute(t *testing.T) {
	api := newTestAPI(t, nil, true)

	_, err := api.ledger.Daily.ApplyDelta(today, func(s models.DailySummary) models.DailySummary {
		s.TotalIntake = 999
		return s
	})
	require.NoError(t, err)

	rec := api.do(t, http.MethodPost, "/api/days/"+today+"/repair", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[ledger.Repair](t, rec)
	assert.Equal(t, 999.0, got.Before.TotalIntake)
	assert.Equal(t, 0.0, got.After.TotalIntake)
}

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", models.ErrValidation), http.StatusBadRequest},
		{ledger.ErrNotFound, http.StatusNotFound},
		{ledger.ErrConfigMissing, http.StatusPreconditionFailed},
		{fmt.Errorf("%w: 401", vision.ErrRequestFailed), http.StatusBadGateway},
		{stream.ErrStreamUnreadable, http.StatusBadGateway},
		{storage.ErrUnavailable, http.StatusServiceUnavailable},
		{context.Canceled, statusClientClosedRequest},
		{context.DeadlineExceeded, statusClientClosedRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFromError(tt.err), tt.err.Error())
	}
}

func TestStatusFromErrorPrefersEarlierSentinel(t *testing.T) {
	// A chain carrying two mapped sentinels resolves the same way every time.
	err := fmt.Errorf("load record: %w: %w", ledger.ErrNotFound, storage.ErrUnavailable)
	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusNotFound, statusFromError(err))
	}

	err = fmt.Errorf("%w: %w", stream.ErrStreamUnreadable, models.ErrValidation)
	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusBadRequest, statusFromError(err))
	}
}

func strPtr(s string) *string { return &s }
