// ABOUTME: FoodItem, FoodRecord and AnalysisResult models for captured meals.
// ABOUTME: Validates model output and builds time-prefixed record IDs.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrValidation marks malformed input: analysis payloads, dates, negative values.
var ErrValidation = errors.New("validation error")

// FoodItem is one dish recognised in a photo.
type FoodItem struct {
	Name            string  `json:"name" yaml:"name"`
	EstimatedWeight string  `json:"estimatedWeight" yaml:"estimated_weight"`
	Calories        float64 `json:"calories" yaml:"calories"`
	Macros          Macros  `json:"macros" yaml:"macros"`
	Tips            string  `json:"tips,omitempty" yaml:"tips,omitempty"`
}

// AnalysisResult is the decoded model answer for one photo.
type AnalysisResult struct {
	Foods []FoodItem `json:"foods" yaml:"foods"`
	Tips  string     `json:"tips,omitempty" yaml:"tips,omitempty"`
}

// Totals sums calories and macros over every food.
func (r AnalysisResult) Totals() (float64, Macros) {
	var calories float64
	var macros Macros
	for _, f := range r.Foods {
		calories += f.Calories
		macros = macros.Add(f.Macros)
	}
	return calories, macros
}

// Names lists the food names in order.
func (r AnalysisResult) Names() []string {
	names := make([]string, 0, len(r.Foods))
	for _, f := range r.Foods {
		names = append(names, f.Name)
	}
	return names
}

// Validate enforces foods >= 1 and a name plus non-negative calories on each.
func (r AnalysisResult) Validate() error {
	if len(r.Foods) == 0 {
		return fmt.Errorf("%w: missing foods array", ErrValidation)
	}
	for i, f := range r.Foods {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("%w: food %d has no name", ErrValidation, i)
		}
		if f.Calories < 0 {
			return fmt.Errorf("%w: food %q has negative calories", ErrValidation, f.Name)
		}
	}
	return nil
}

// wireFood keeps calories as a pointer so a missing or non-numeric value is detectable.
type wireFood struct {
	Name            string   `json:"name"`
	EstimatedWeight string   `json:"estimatedWeight"`
	Calories        *float64 `json:"calories"`
	Macros          Macros   `json:"macros"`
	Tips            string   `json:"tips"`
}

type wireResult struct {
	Foods *[]wireFood `json:"foods"`
	Tips  string      `json:"tips"`
}

// ParseAnalysis decodes and validates a reassembled model payload.
func ParseAnalysis(text string) (*AnalysisResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty response", ErrValidation)
	}

	var wire wireResult
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if wire.Foods == nil {
		return nil, fmt.Errorf("%w: missing foods array", ErrValidation)
	}

	result := &AnalysisResult{Tips: wire.Tips}
	for i, f := range *wire.Foods {
		if f.Calories == nil {
			return nil, fmt.Errorf("%w: food %d has no numeric calories", ErrValidation, i)
		}
		result.Foods = append(result.Foods, FoodItem{
			Name:            f.Name,
			EstimatedWeight: f.EstimatedWeight,
			Calories:        *f.Calories,
			Macros:          f.Macros,
			Tips:            f.Tips,
		})
	}

	if err := result.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

// FoodRecord is one captured meal, keyed food_<id>. Never mutated in place.
type FoodRecord struct {
	ID            string     `json:"id" yaml:"id"`
	Date          string     `json:"date" yaml:"date"`
	Timestamp     int64      `json:"timestamp" yaml:"timestamp"`
	Thumbnail     string     `json:"thumbnail" yaml:"thumbnail"`
	Items         []FoodItem `json:"items" yaml:"items"`
	TotalCalories float64    `json:"totalCalories" yaml:"total_calories"`
	TotalMacros   Macros     `json:"totalMacros" yaml:"total_macros"`
}

// NewRecordID returns a 13-digit millisecond prefix plus a UUID, so IDs sort by capture time.
func NewRecordID(at time.Time) string {
	return fmt.Sprintf("%013d_%s", at.UnixMilli(), uuid.New().String())
}

// NewFoodRecord builds a record for date from a validated analysis result.
func NewFoodRecord(date string, result AnalysisResult, thumbnail string, at time.Time) *FoodRecord {
	calories, macros := result.Totals()
	items := make([]FoodItem, len(result.Foods))
	copy(items, result.Foods)
	return &FoodRecord{
		ID:            NewRecordID(at),
		Date:          date,
		Timestamp:     at.UnixMilli(),
		Thumbnail:     thumbnail,
		Items:         items,
		TotalCalories: calories,
		TotalMacros:   macros,
	}
}

// ShortID is the first 8 characters of the UUID part, as shown in listings.
func (r *FoodRecord) ShortID() string {
	return ShortRecordID(r.ID)
}

// ShortRecordID trims a record ID to its UUID prefix.
func ShortRecordID(id string) string {
	suffix := id
	if i := strings.LastIndex(id, "_"); i >= 0 {
		suffix = id[i+1:]
	}
	if len(suffix) > 8 {
		return suffix[:8]
	}
	return suffix
}
