// ABOUTME: Tests for deficit configuration management.
// ABOUTME: Covers load, save, defaults, env overlay, backend selection, and path expansion.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetBackendDefault(t *testing.T) {
	cfg := &Config{}
	if got := cfg.GetBackend(); got != BackendBadger {
		t.Errorf("GetBackend() = %q, want %q", got, BackendBadger)
	}
}

func TestGetBackendExplicit(t *testing.T) {
	cfg := &Config{Backend: "sqlite"}
	if got := cfg.GetBackend(); got != "sqlite" {
		t.Errorf("GetBackend() = %q, want %q", got, "sqlite")
	}
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}

	if got := cfg.GetListenAddr(); got != DefaultListenAddr {
		t.Errorf("GetListenAddr() = %q, want %q", got, DefaultListenAddr)
	}
	if got := cfg.GetCacheTTL(); got != 5*time.Minute {
		t.Errorf("GetCacheTTL() = %v, want 5m", got)
	}
	if got := cfg.GetSweepInterval(); got != 10*time.Minute {
		t.Errorf("GetSweepInterval() = %v, want 10m", got)
	}
	if got := cfg.GetRequestTimeout(); got != 5*time.Minute {
		t.Errorf("GetRequestTimeout() = %v, want 5m", got)
	}
	if got := cfg.GetLogLevel(); got != "info" {
		t.Errorf("GetLogLevel() = %q, want info", got)
	}
	if got := cfg.GetDataDir(); got == "" {
		t.Error("GetDataDir() returned empty string")
	}
}

func TestGetDataDirExplicit(t *testing.T) {
	cfg := &Config{DataDir: "/tmp/deficit-test"}
	if got := cfg.GetDataDir(); got != "/tmp/deficit-test" {
		t.Errorf("GetDataDir() = %q, want %q", got, "/tmp/deficit-test")
	}
}

func TestGetDataDirExpandsTilde(t *testing.T) {
	home, _ := os.UserHomeDir()

	cfg := &Config{DataDir: "~/deficit-data"}
	want := filepath.Join(home, "deficit-data")
	if got := cfg.GetDataDir(); got != want {
		t.Errorf("GetDataDir() = %q, want %q", got, want)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/tmp/foo", "/tmp/foo"},
		{"~", home},
		{"~/data/deficit", filepath.Join(home, "data/deficit")},
		{"data/deficit", "data/deficit"},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.in); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStorePath(t *testing.T) {
	cfg := &Config{DataDir: "/data"}
	if got := cfg.StorePath(BackendSQLite); got != "/data/deficit.db" {
		t.Errorf("StorePath(sqlite) = %q", got)
	}
	if got := cfg.StorePath(BackendBadger); got != "/data/badger" {
		t.Errorf("StorePath(badger) = %q", got)
	}
}

func TestOpenStorageLocalBackends(t *testing.T) {
	for _, backend := range []string{BackendBadger, BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := &Config{Backend: backend, DataDir: t.TempDir()}
			store, err := cfg.OpenStorage()
			if err != nil {
				t.Fatalf("OpenStorage() failed: %v", err)
			}
			defer store.Close()

			if err := store.Set("k", []byte("v")); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
		})
	}
}

func TestOpenStorageUnknownBackend(t *testing.T) {
	cfg := &Config{Backend: "postgres"}
	if _, err := cfg.OpenStorage(); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestLoadNonExistentConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with no config file should not error: %v", err)
	}
	if cfg.Backend != "" || cfg.DataDir != "" {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := &Config{
		Backend:       "sqlite",
		DataDir:       "/tmp/deficit-data",
		CacheTTL:      Duration(90 * time.Second),
		SweepInterval: Duration(time.Hour),
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded.Backend != "sqlite" {
		t.Errorf("Backend mismatch: got %q", loaded.Backend)
	}
	if loaded.DataDir != "/tmp/deficit-data" {
		t.Errorf("DataDir mismatch: got %q", loaded.DataDir)
	}
	if loaded.GetCacheTTL() != 90*time.Second {
		t.Errorf("CacheTTL mismatch: got %v", loaded.GetCacheTTL())
	}
	if loaded.GetSweepInterval() != time.Hour {
		t.Errorf("SweepInterval mismatch: got %v", loaded.GetSweepInterval())
	}
}

func TestDurationJSONFormats(t *testing.T) {
	var cfg Config
	raw := `{"cache_ttl":"2m","request_timeout":30000000000}`
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if cfg.GetCacheTTL() != 2*time.Minute {
		t.Errorf("cache_ttl = %v, want 2m", cfg.GetCacheTTL())
	}
	if cfg.GetRequestTimeout() != 30*time.Second {
		t.Errorf("request_timeout = %v, want 30s", cfg.GetRequestTimeout())
	}

	if err := json.Unmarshal([]byte(`{"cache_ttl":"soon"}`), &cfg); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := (&Config{Backend: "sqlite", ListenAddr: ":9000"}).Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	t.Setenv("DEFICIT_BACKEND", "charm")
	t.Setenv("DEFICIT_CACHE_TTL", "45s")
	t.Setenv("DEFICIT_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Backend != "charm" {
		t.Errorf("Backend = %q, want env value charm", cfg.Backend)
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q, want file value :9000", cfg.ListenAddr)
	}
	if cfg.GetCacheTTL() != 45*time.Second {
		t.Errorf("CacheTTL = %v, want 45s", cfg.GetCacheTTL())
	}
	if cfg.GetLogLevel() != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.GetLogLevel())
	}
}

func TestEnvInvalidDuration(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DEFICIT_SWEEP_INTERVAL", "often")

	if _, err := Load(); err == nil {
		t.Error("expected error for invalid env duration")
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "nonexistent"))

	if err := (&Config{Backend: "sqlite"}).Save(); err != nil {
		t.Fatalf("Save() should create directory: %v", err)
	}

	configDir := filepath.Join(tmpDir, "nonexistent", "deficit")
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		t.Error("Expected config directory to be created")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configDir := filepath.Join(tmpDir, "deficit")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.json"), []byte("invalid json"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(); err == nil {
		t.Error("Expected error for invalid JSON config")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	want := "/custom/config/deficit/config.json"
	if got := GetConfigPath(); got != want {
		t.Errorf("GetConfigPath() = %q, want %q", got, want)
	}
}
