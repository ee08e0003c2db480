// ABOUTME: Route handlers for the ledger API.
// ABOUTME: Request bodies are validated here before any ledger call.
package server

import (
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/harperreed/deficit/internal/ledger"
	"github.com/harperreed/deficit/internal/models"
	"github.com/harperreed/deficit/internal/stream"
)

// BMR edits outside this range are rejected as typos.
const (
	minBMR = 500
	maxBMR = 5000
)

// Dashboard is one day's balance plus the meals behind it.
type Dashboard struct {
	Summary models.DailySummary `json:"summary"`
	Records []models.FoodRecord `json:"records"`
}

func (h *Handler) dashboardFor(w http.ResponseWriter, r *http.Request, date string) {
	summary, err := h.ledger.Daily.GetOrCreate(date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	records, err := h.ledger.Food.ListForDate(date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if records == nil {
		records = []models.FoodRecord{}
	}
	writeJSON(w, http.StatusOK, Dashboard{Summary: summary, Records: records})
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.ledger.Today()
	}
	h.dashboardFor(w, r, date)
}

func (h *Handler) day(w http.ResponseWriter, r *http.Request) {
	h.dashboardFor(w, r, chi.URLParam(r, "date"))
}

func (h *Handler) monthlyStats(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		badRequest(w, "invalid year")
		return
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		badRequest(w, "invalid month")
		return
	}

	stats, err := h.ledger.Daily.MonthlyStats(year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if stats == nil {
		stats = []models.MonthlyStat{}
	}
	writeJSON(w, http.StatusOK, stats)
}

type activeRequest struct {
	Calories *float64 `json:"calories"`
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Calories == nil || *req.Calories < 0 || math.IsInf(*req.Calories, 0) {
		badRequest(w, "calories must be a non-negative number")
		return
	}

	summary, err := h.ledger.Daily.SetActiveCalories(chi.URLParam(r, "date"), *req.Calories)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type bmrRequest struct {
	BMR *float64 `json:"bmr"`
}

func (h *Handler) setBMR(w http.ResponseWriter, r *http.Request) {
	var req bmrRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.BMR == nil || *req.BMR < minBMR || *req.BMR > maxBMR {
		badRequest(w, "bmr must be between 500 and 5000")
		return
	}

	summary, err := h.ledger.Daily.SetBMR(chi.URLParam(r, "date"), *req.BMR)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) listFood(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := models.ParseDate(date); err != nil {
		writeError(w, r, err)
		return
	}
	records, err := h.ledger.Food.ListForDate(date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if records == nil {
		records = []models.FoodRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// addFood books an analysis result supplied by the caller, in the same
// JSON shape the vision endpoint returns. Fenced or chatty pastes are accepted.
func (h *Handler) addFood(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		badRequest(w, "unreadable body")
		return
	}
	result, err := models.ParseAnalysis(stream.Extract(string(raw)))
	if err != nil {
		writeError(w, r, err)
		return
	}

	record, err := h.ledger.Food.AddRecord(chi.URLParam(r, "date"), *result, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

type analyzeRequest struct {
	Image string `json:"image"`
}

// analyze runs the vision pipeline. The request context is the cancellation
// token: a caller that disconnects mid-analysis leaves nothing behind.
func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Image == "" {
		badRequest(w, "image is required")
		return
	}

	record, err := h.ledger.Capture(r.Context(), chi.URLParam(r, "date"), req.Image)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (h *Handler) repair(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := models.ParseDate(date); err != nil {
		writeError(w, r, err)
		return
	}
	repair, err := h.ledger.Reconcile(date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, repair)
}

func (h *Handler) getFood(w http.ResponseWriter, r *http.Request) {
	record, err := h.ledger.Food.Resolve(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) deleteFood(w http.ResponseWriter, r *http.Request) {
	record, err := h.ledger.Food.Resolve(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.ledger.Food.DeleteRecord(record.ID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func redacted(s models.UserSettings) models.UserSettings {
	s.AIConfig = s.AIConfig.Redacted()
	return s
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.ledger.Settings.Get()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, redacted(settings))
}

type profileRequest struct {
	models.Profile
	TargetDeficit *int  `json:"targetDeficit"`
	UseManualBMR  *bool `json:"useManualBMR"`
	ManualBMR     *int  `json:"manualBMR"`
}

func (h *Handler) saveProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ManualBMR != nil && (*req.ManualBMR < minBMR || *req.ManualBMR > maxBMR) {
		badRequest(w, "manualBMR must be between 500 and 5000")
		return
	}
	if req.TargetDeficit != nil && *req.TargetDeficit < 0 {
		badRequest(w, "targetDeficit must not be negative")
		return
	}

	settings, err := h.ledger.Settings.SaveProfile(req.Profile, ledger.ProfileOptions{
		TargetDeficit: req.TargetDeficit,
		UseManualBMR:  req.UseManualBMR,
		ManualBMR:     req.ManualBMR,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, redacted(settings))
}

type bmrModeRequest struct {
	UseManual *bool `json:"useManual"`
}

func (h *Handler) setBMRMode(w http.ResponseWriter, r *http.Request) {
	var req bmrModeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UseManual == nil {
		badRequest(w, "useManual is required")
		return
	}

	settings, err := h.ledger.Settings.UpdateBMRSettings(*req.UseManual)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, redacted(settings))
}

type aiRequest struct {
	APIKey  *string `json:"apiKey"`
	BaseURL *string `json:"baseUrl"`
	Model   *string `json:"model"`
}

func (h *Handler) updateAI(w http.ResponseWriter, r *http.Request) {
	var req aiRequest
	if !decodeBody(w, r, &req) {
		return
	}

	settings, err := h.ledger.Settings.UpdateAIConfig(ledger.AIConfigPatch{
		APIKey:  req.APIKey,
		BaseURL: req.BaseURL,
		Model:   req.Model,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, redacted(settings))
}
