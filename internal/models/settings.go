// ABOUTME: UserSettings model: profile, computed BMR, goals, AI credentials, BMR mode.
// ABOUTME: One record per installation, persisted under USER_SETTINGS.
package models

import "fmt"

// Gender selects the Mifflin-St Jeor constant.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// IsValidGender checks if a string is a supported gender value.
func IsValidGender(s string) bool {
	return s == string(GenderMale) || s == string(GenderFemale)
}

// Defaults applied on the first ever profile save.
const (
	DefaultTargetDeficit = 500
	DefaultBaseURL       = "https://api.openai.com/v1"
	DefaultModel         = "gpt-4o"
)

// Profile holds the body measurements the BMR formula needs.
type Profile struct {
	Gender    Gender  `json:"gender" yaml:"gender"`
	Age       int     `json:"age" yaml:"age"`
	Height    float64 `json:"height" yaml:"height"` // cm
	Weight    float64 `json:"weight" yaml:"weight"` // kg
	UpdatedAt int64   `json:"updatedAt" yaml:"updated_at"`
}

// Validate reports obviously impossible profile values.
func (p Profile) Validate() error {
	if !IsValidGender(string(p.Gender)) {
		return fmt.Errorf("%w: unknown gender %q", ErrValidation, p.Gender)
	}
	if p.Age <= 0 || p.Height <= 0 || p.Weight <= 0 {
		return fmt.Errorf("%w: age, height and weight must be positive", ErrValidation)
	}
	return nil
}

type Computed struct {
	BMR int `json:"bmr" yaml:"bmr"`
}

type Goals struct {
	TargetDeficit int `json:"targetDeficit" yaml:"target_deficit"`
}

// AIConfig points at an OpenAI-compatible chat-completions endpoint.
type AIConfig struct {
	APIKey  string `json:"apiKey" yaml:"api_key"`
	BaseURL string `json:"baseUrl" yaml:"base_url"`
	Model   string `json:"model" yaml:"model"`
}

// Redacted returns a copy safe to print or serve.
func (c AIConfig) Redacted() AIConfig {
	if len(c.APIKey) > 4 {
		c.APIKey = "****" + c.APIKey[len(c.APIKey)-4:]
	} else if c.APIKey != "" {
		c.APIKey = "****"
	}
	return c
}

type BMRSettings struct {
	UseManualBMR bool `json:"useManualBMR" yaml:"use_manual_bmr"`
}

// UserSettings is the singleton settings record.
type UserSettings struct {
	Profile     Profile     `json:"profile" yaml:"profile"`
	Computed    Computed    `json:"computed" yaml:"computed"`
	Goals       Goals       `json:"goals" yaml:"goals"`
	AIConfig    AIConfig    `json:"aiConfig" yaml:"ai_config"`
	BMRSettings BMRSettings `json:"bmrSettings" yaml:"bmr_settings"`
}
