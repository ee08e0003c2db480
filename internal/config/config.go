// ABOUTME: Deficit configuration: JSON file with an environment overlay.
// ABOUTME: Also owns the storage backend factory.

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/harperreed/deficit/internal/charm"
	"github.com/harperreed/deficit/internal/storage"
)

// Backend names.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendCharm  = "charm"
)

// Defaults for unset fields.
const (
	DefaultListenAddr     = "127.0.0.1:8787"
	DefaultCacheTTL       = 5 * time.Minute
	DefaultSweepInterval  = 10 * time.Minute
	DefaultRequestTimeout = 5 * time.Minute
	DefaultLogLevel       = "info"
)

// Duration is a time.Duration that reads "30s"-style strings from JSON.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalText lets the env overlay parse the same format.
func (d *Duration) UnmarshalText(b []byte) error {
	tmp, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(tmp)
	return nil
}

// Config stores deficit tool configuration.
type Config struct {
	// Backend selects the store: "badger" (default), "sqlite" or "charm".
	Backend string `json:"backend,omitempty" env:"BACKEND"`

	// DataDir is the root directory for local data. Supports ~ expansion.
	// Defaults to $XDG_DATA_HOME/deficit.
	DataDir string `json:"data_dir,omitempty" env:"DATA_DIR"`

	ListenAddr     string   `json:"listen_addr,omitempty" env:"LISTEN_ADDR"`
	CacheTTL       Duration `json:"cache_ttl,omitempty" env:"CACHE_TTL"`
	SweepInterval  Duration `json:"sweep_interval,omitempty" env:"SWEEP_INTERVAL"`
	LogLevel       string   `json:"log_level,omitempty" env:"LOG_LEVEL"`
	RequestTimeout Duration `json:"request_timeout,omitempty" env:"REQUEST_TIMEOUT"`
}

// GetBackend returns the configured backend, defaulting to badger.
func (c *Config) GetBackend() string {
	if c.Backend == "" {
		return BackendBadger
	}
	return c.Backend
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return storage.DataDir()
	}
	return ExpandPath(c.DataDir)
}

func (c *Config) GetListenAddr() string {
	if c.ListenAddr == "" {
		return DefaultListenAddr
	}
	return c.ListenAddr
}

func (c *Config) GetCacheTTL() time.Duration {
	return orDefault(c.CacheTTL, DefaultCacheTTL)
}

func (c *Config) GetSweepInterval() time.Duration {
	return orDefault(c.SweepInterval, DefaultSweepInterval)
}

func (c *Config) GetRequestTimeout() time.Duration {
	return orDefault(c.RequestTimeout, DefaultRequestTimeout)
}

func (c *Config) GetLogLevel() string {
	if c.LogLevel == "" {
		return DefaultLogLevel
	}
	return c.LogLevel
}

func orDefault(d Duration, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return time.Duration(d)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// StorePath returns where a local backend keeps its files.
func (c *Config) StorePath(backend string) string {
	switch backend {
	case BackendSQLite:
		return filepath.Join(c.GetDataDir(), "deficit.db")
	default:
		return filepath.Join(c.GetDataDir(), "badger")
	}
}

// OpenStorage creates the Store for the configured backend.
func (c *Config) OpenStorage() (storage.Store, error) {
	return c.OpenBackend(c.GetBackend())
}

// OpenBackend opens a named backend regardless of the configured one.
func (c *Config) OpenBackend(backend string) (storage.Store, error) {
	switch backend {
	case BackendBadger:
		return storage.OpenBadger(c.StorePath(backend))
	case BackendSQLite:
		return storage.OpenSQLite(c.StorePath(backend))
	case BackendCharm:
		return charm.InitClient()
	default:
		return nil, fmt.Errorf("unknown backend: %q", backend)
	}
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "deficit", "config.json")
}

// Load reads config from disk, then applies DEFICIT_* environment overrides.
func Load() (*Config, error) {
	cfg, err := loadFile(GetConfigPath())
	if err != nil {
		return nil, err
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "DEFICIT_"}); err != nil {
		return nil, fmt.Errorf("error getting env configs: %w", err)
	}
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	path := GetConfigPath()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
