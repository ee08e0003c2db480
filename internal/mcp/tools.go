// ABOUTME: MCP tool implementations for the deficit ledger.
// ABOUTME: Dashboard reads, daily edits, food records, monthly stats and settings.
package mcp

import (
	"context"
	"fmt"
	"math"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/deficit/internal/ledger"
	"github.com/harperreed/deficit/internal/models"
	"github.com/harperreed/deficit/internal/stream"
)

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_dashboard",
		Description: "Get the energy balance and meals for a day (defaults to today)",
	}, s.handleGetDashboard)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "set_active_calories",
		Description: "Set the calories burned through activity on a day",
	}, s.handleSetActiveCalories)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "set_bmr",
		Description: "Override the BMR recorded for a single day",
	}, s.handleSetBMR)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_food",
		Description: "List the meals recorded on a day, newest first",
	}, s.handleListFood)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_food",
		Description: "Record a meal from a food analysis JSON object",
	}, s.handleAddFood)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "analyze_photo",
		Description: "Analyze a meal photo with the configured vision model and record it",
	}, s.handleAnalyzePhoto)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "delete_food",
		Description: "Delete a meal by ID or ID prefix and take it off its day's totals",
	}, s.handleDeleteFood)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "monthly_stats",
		Description: "Get per-day net calories and whether the deficit target was met for a month",
	}, s.handleMonthlyStats)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_settings",
		Description: "Get the profile, BMR, goals and AI configuration (API key redacted)",
	}, s.handleGetSettings)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "save_profile",
		Description: "Save body measurements and goals; recomputes BMR",
	}, s.handleSaveProfile)
}

// Tool input/output types

type dateInput struct {
	Date string `json:"date,omitempty" jsonschema:"Day as YYYY-MM-DD, defaults to today"`
}

type dashboardOutput struct {
	Summary models.DailySummary `json:"summary"`
	Records []recordOutput      `json:"records"`
}

// recordOutput drops the thumbnail, which is useless to an agent.
type recordOutput struct {
	ID            string            `json:"id"`
	ShortID       string            `json:"short_id"`
	Date          string            `json:"date"`
	Foods         []models.FoodItem `json:"foods"`
	TotalCalories float64           `json:"total_calories"`
	TotalMacros   models.Macros     `json:"total_macros"`
}

func toRecordOutput(r models.FoodRecord) recordOutput {
	return recordOutput{
		ID:            r.ID,
		ShortID:       r.ShortID(),
		Date:          r.Date,
		Foods:         r.Items,
		TotalCalories: r.TotalCalories,
		TotalMacros:   r.TotalMacros,
	}
}

type setActiveInput struct {
	Date     string  `json:"date,omitempty" jsonschema:"Day as YYYY-MM-DD, defaults to today"`
	Calories float64 `json:"calories" jsonschema:"Active calories burned (kcal, not negative)"`
}

type setBMRInput struct {
	Date string  `json:"date,omitempty" jsonschema:"Day as YYYY-MM-DD, defaults to today"`
	BMR  float64 `json:"bmr" jsonschema:"BMR for that day in kcal (500-5000)"`
}

type summaryOutput struct {
	Summary models.DailySummary `json:"summary"`
}

type listFoodOutput struct {
	Date    string         `json:"date"`
	Records []recordOutput `json:"records"`
}

type addFoodInput struct {
	Date     string `json:"date,omitempty" jsonschema:"Day as YYYY-MM-DD, defaults to today"`
	Analysis string `json:"analysis" jsonschema:"Analysis JSON text with a foods array of name, calories and macros (protein, carbs, fat)"`
}

type analyzePhotoInput struct {
	Date  string `json:"date,omitempty" jsonschema:"Day as YYYY-MM-DD, defaults to today"`
	Image string `json:"image" jsonschema:"Photo as a data URL or bare base64 JPEG"`
}

type recordResult struct {
	Record  recordOutput `json:"record"`
	Message string       `json:"message"`
}

type deleteFoodInput struct {
	ID string `json:"id" jsonschema:"Record ID or prefix"`
}

type simpleOutput struct {
	Message string `json:"message"`
}

type monthlyStatsInput struct {
	Year  int `json:"year" jsonschema:"Four-digit year"`
	Month int `json:"month" jsonschema:"Month number 1-12"`
}

type monthlyStatsOutput struct {
	Days      []models.MonthlyStat `json:"days"`
	Successes int                  `json:"successes"`
}

type settingsOutput struct {
	Settings models.UserSettings `json:"settings"`
}

type saveProfileInput struct {
	Gender        string  `json:"gender" jsonschema:"male or female"`
	Age           int     `json:"age" jsonschema:"Age in years"`
	Height        float64 `json:"height" jsonschema:"Height in cm"`
	Weight        float64 `json:"weight" jsonschema:"Weight in kg"`
	TargetDeficit *int    `json:"target_deficit,omitempty" jsonschema:"Daily deficit goal in kcal"`
	ManualBMR     *int    `json:"manual_bmr,omitempty" jsonschema:"Use this BMR instead of the formula"`
}

func (s *Server) date(d string) string {
	if d == "" {
		return s.ledger.Today()
	}
	return d
}

// Tool handlers

func (s *Server) handleGetDashboard(_ context.Context, _ *mcp.CallToolRequest, input dateInput) (*mcp.CallToolResult, dashboardOutput, error) {
	date := s.date(input.Date)

	summary, err := s.ledger.Daily.GetOrCreate(date)
	if err != nil {
		return nil, dashboardOutput{}, err
	}
	records, err := s.ledger.Food.ListForDate(date)
	if err != nil {
		return nil, dashboardOutput{}, err
	}

	out := dashboardOutput{Summary: summary, Records: make([]recordOutput, 0, len(records))}
	for _, r := range records {
		out.Records = append(out.Records, toRecordOutput(r))
	}
	return nil, out, nil
}

func (s *Server) handleSetActiveCalories(_ context.Context, _ *mcp.CallToolRequest, input setActiveInput) (*mcp.CallToolResult, summaryOutput, error) {
	if input.Calories < 0 || math.IsNaN(input.Calories) || math.IsInf(input.Calories, 0) {
		return nil, summaryOutput{}, fmt.Errorf("calories must be a non-negative number")
	}
	summary, err := s.ledger.Daily.SetActiveCalories(s.date(input.Date), input.Calories)
	if err != nil {
		return nil, summaryOutput{}, err
	}
	return nil, summaryOutput{Summary: summary}, nil
}

func (s *Server) handleSetBMR(_ context.Context, _ *mcp.CallToolRequest, input setBMRInput) (*mcp.CallToolResult, summaryOutput, error) {
	if input.BMR < 500 || input.BMR > 5000 {
		return nil, summaryOutput{}, fmt.Errorf("bmr must be between 500 and 5000")
	}
	summary, err := s.ledger.Daily.SetBMR(s.date(input.Date), input.BMR)
	if err != nil {
		return nil, summaryOutput{}, err
	}
	return nil, summaryOutput{Summary: summary}, nil
}

func (s *Server) handleListFood(_ context.Context, _ *mcp.CallToolRequest, input dateInput) (*mcp.CallToolResult, listFoodOutput, error) {
	date := s.date(input.Date)
	if _, err := models.ParseDate(date); err != nil {
		return nil, listFoodOutput{}, err
	}

	records, err := s.ledger.Food.ListForDate(date)
	if err != nil {
		return nil, listFoodOutput{}, fmt.Errorf("failed to list food: %w", err)
	}

	out := listFoodOutput{Date: date, Records: make([]recordOutput, 0, len(records))}
	for _, r := range records {
		out.Records = append(out.Records, toRecordOutput(r))
	}
	return nil, out, nil
}

func (s *Server) handleAddFood(_ context.Context, _ *mcp.CallToolRequest, input addFoodInput) (*mcp.CallToolResult, recordResult, error) {
	result, err := models.ParseAnalysis(stream.Extract(input.Analysis))
	if err != nil {
		return nil, recordResult{}, err
	}

	record, err := s.ledger.Food.AddRecord(s.date(input.Date), *result, "")
	if err != nil {
		return nil, recordResult{}, err
	}
	return nil, recordResult{
		Record:  toRecordOutput(*record),
		Message: fmt.Sprintf("Recorded %.0f kcal on %s", record.TotalCalories, record.Date),
	}, nil
}

func (s *Server) handleAnalyzePhoto(ctx context.Context, _ *mcp.CallToolRequest, input analyzePhotoInput) (*mcp.CallToolResult, recordResult, error) {
	if input.Image == "" {
		return nil, recordResult{}, fmt.Errorf("image is required")
	}

	record, err := s.ledger.Capture(ctx, s.date(input.Date), input.Image)
	if err != nil {
		if ledger.IsCanceled(err) {
			s.log.Debug().Msg("analysis canceled")
		}
		return nil, recordResult{}, err
	}
	return nil, recordResult{
		Record:  toRecordOutput(*record),
		Message: fmt.Sprintf("Recorded %.0f kcal on %s", record.TotalCalories, record.Date),
	}, nil
}

func (s *Server) handleDeleteFood(_ context.Context, _ *mcp.CallToolRequest, input deleteFoodInput) (*mcp.CallToolResult, simpleOutput, error) {
	record, err := s.ledger.Food.Resolve(input.ID)
	if err != nil {
		return nil, simpleOutput{}, err
	}
	if _, err := s.ledger.Food.DeleteRecord(record.ID); err != nil {
		return nil, simpleOutput{}, fmt.Errorf("failed to delete food: %w", err)
	}
	return nil, simpleOutput{
		Message: fmt.Sprintf("Deleted %s (%.0f kcal) from %s", record.ShortID(), record.TotalCalories, record.Date),
	}, nil
}

func (s *Server) handleMonthlyStats(_ context.Context, _ *mcp.CallToolRequest, input monthlyStatsInput) (*mcp.CallToolResult, monthlyStatsOutput, error) {
	stats, err := s.ledger.Daily.MonthlyStats(input.Year, input.Month)
	if err != nil {
		return nil, monthlyStatsOutput{}, err
	}

	out := monthlyStatsOutput{Days: stats}
	if out.Days == nil {
		out.Days = []models.MonthlyStat{}
	}
	for _, d := range stats {
		if d.IsSuccess {
			out.Successes++
		}
	}
	return nil, out, nil
}

func (s *Server) handleGetSettings(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, settingsOutput, error) {
	settings, err := s.ledger.Settings.Get()
	if err != nil {
		return nil, settingsOutput{}, err
	}
	settings.AIConfig = settings.AIConfig.Redacted()
	return nil, settingsOutput{Settings: settings}, nil
}

func (s *Server) handleSaveProfile(_ context.Context, _ *mcp.CallToolRequest, input saveProfileInput) (*mcp.CallToolResult, settingsOutput, error) {
	opts := ledger.ProfileOptions{TargetDeficit: input.TargetDeficit}
	if input.ManualBMR != nil {
		manual := true
		opts.UseManualBMR = &manual
		opts.ManualBMR = input.ManualBMR
	}

	settings, err := s.ledger.Settings.SaveProfile(models.Profile{
		Gender: models.Gender(input.Gender),
		Age:    input.Age,
		Height: input.Height,
		Weight: input.Weight,
	}, opts)
	if err != nil {
		return nil, settingsOutput{}, err
	}
	settings.AIConfig = settings.AIConfig.Redacted()
	return nil, settingsOutput{Settings: settings}, nil
}
