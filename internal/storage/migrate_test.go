// ABOUTME: Tests for data migration between storage backends.
// ABOUTME: Covers badger-to-sqlite copy counts and IsDirNonEmpty.
package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMigrateDataBadgerToSQLite(t *testing.T) {
	src := setupTestBadger(t)
	dst := setupTestDB(t)

	seed := map[string]string{
		SettingsKey:              `{"computed":{"bmr":1650}}`,
		DailyKey("2024-11-01"):   `{"date":"2024-11-01"}`,
		DailyKey("2024-11-02"):   `{"date":"2024-11-02"}`,
		FoodKey("0000000000001_a"): `{"id":"0000000000001_a"}`,
	}
	for k, v := range seed {
		if err := src.Set(k, []byte(v)); err != nil {
			t.Fatalf("seed %s: %v", k, err)
		}
	}

	summary, err := MigrateData(src, dst)
	if err != nil {
		t.Fatalf("MigrateData failed: %v", err)
	}

	if summary.Settings != 1 {
		t.Errorf("Expected 1 migrated settings record, got %d", summary.Settings)
	}
	if summary.Summaries != 2 {
		t.Errorf("Expected 2 migrated summaries, got %d", summary.Summaries)
	}
	if summary.Records != 1 {
		t.Errorf("Expected 1 migrated record, got %d", summary.Records)
	}

	for k, v := range seed {
		got, err := dst.Get(k)
		if err != nil {
			t.Fatalf("dst Get(%s): %v", k, err)
		}
		if string(got) != v {
			t.Errorf("dst %s = %s, want %s", k, got, v)
		}
	}
}

func TestIsDirNonEmpty(t *testing.T) {
	dir := t.TempDir()

	nonEmpty, err := IsDirNonEmpty(dir)
	if err != nil || nonEmpty {
		t.Errorf("empty dir: got %v, %v", nonEmpty, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	nonEmpty, err = IsDirNonEmpty(dir)
	if err != nil || !nonEmpty {
		t.Errorf("non-empty dir: got %v, %v", nonEmpty, err)
	}

	nonEmpty, err = IsDirNonEmpty(filepath.Join(dir, "nope"))
	if err != nil || nonEmpty {
		t.Errorf("missing dir: got %v, %v", nonEmpty, err)
	}
}
