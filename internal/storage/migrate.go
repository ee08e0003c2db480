// ABOUTME: Data migration between deficit storage backends.
// ABOUTME: Copies settings, summaries, and food records from source to destination.

package storage

import (
	"fmt"
	"os"
)

// MigrateSummary holds counts of migrated entities.
type MigrateSummary struct {
	Settings  int
	Summaries int
	Records   int
	Other     int
}

// MigrateData copies every entry from src to dst, overwriting keys already in dst.
func MigrateData(src, dst Store) (*MigrateSummary, error) {
	entries, err := src.Entries("")
	if err != nil {
		return nil, fmt.Errorf("list source entries: %w", err)
	}

	summary := &MigrateSummary{}
	for _, e := range entries {
		if err := dst.Set(e.Key, e.Value); err != nil {
			return nil, fmt.Errorf("copy %s: %w", e.Key, err)
		}
		switch {
		case e.Key == SettingsKey:
			summary.Settings++
		case IsDailyKey(e.Key):
			summary.Summaries++
		case IsFoodKey(e.Key):
			summary.Records++
		default:
			summary.Other++
		}
	}

	return summary, nil
}

// IsDirNonEmpty checks whether a directory exists and contains any files or subdirectories.
// Returns false if the directory does not exist or is empty.
func IsDirNonEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read directory %q: %w", path, err)
	}
	return len(entries) > 0, nil
}
