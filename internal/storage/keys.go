// ABOUTME: Logical key layout shared by every backend.
// ABOUTME: USER_SETTINGS singleton, daily_<date> summaries, food_<id> records.
package storage

import "strings"

const (
	SettingsKey = "USER_SETTINGS"
	DailyPrefix = "daily_"
	FoodPrefix  = "food_"
)

// DailyKey returns the summary key for a ledger date.
func DailyKey(date string) string {
	return DailyPrefix + date
}

// FoodKey returns the record key for a record ID.
func FoodKey(id string) string {
	return FoodPrefix + id
}

func IsDailyKey(key string) bool {
	return strings.HasPrefix(key, DailyPrefix)
}

func IsFoodKey(key string) bool {
	return strings.HasPrefix(key, FoodPrefix)
}

// DateFromKey extracts the date from a summary key, or "" for other keys.
func DateFromKey(key string) string {
	if !IsDailyKey(key) {
		return ""
	}
	return strings.TrimPrefix(key, DailyPrefix)
}

// IDFromKey extracts the record ID from a record key, or "" for other keys.
func IDFromKey(key string) string {
	if !IsFoodKey(key) {
		return ""
	}
	return strings.TrimPrefix(key, FoodPrefix)
}
