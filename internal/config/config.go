package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Conflict policies for previously ingested commits whose content changed.
const (
	ConflictReject    = "reject"
	ConflictOverwrite = "overwrite"
)

// Config holds all ingestion configuration.
type Config struct {
	RepoPath        string `json:"repo_path"`
	DBPath          string `json:"db_path"`
	Workers         int    `json:"workers"`
	RenameThreshold int    `json:"rename_threshold"`
	DiffTimeoutSecs int    `json:"diff_timeout_secs"`
	OnConflict      string `json:"on_conflict"`
	AllowShallow    bool   `json:"allow_shallow"`
}

// DefaultDataDir returns the default data directory (~/.githist).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".githist")
}

// Default returns a Config with sensible defaults. The rename threshold
// uses go-git's 0-100 similarity scale; 60 matches git's own default.
func Default() *Config {
	return &Config{
		RepoPath:        ".",
		DBPath:          filepath.Join(DefaultDataDir(), "githist.db"),
		Workers:         4,
		RenameThreshold: 60,
		DiffTimeoutSecs: 30,
		OnConflict:      ConflictReject,
	}
}

// Load reads configuration from a JSON file, falling back to defaults
// for any unset fields.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file is fine, use defaults.
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

// Validate checks that configured values are usable.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if c.RenameThreshold < 0 || c.RenameThreshold > 100 {
		return fmt.Errorf("rename_threshold must be in [0,100], got %d", c.RenameThreshold)
	}
	if c.DiffTimeoutSecs < 1 {
		return fmt.Errorf("diff_timeout_secs must be >= 1, got %d", c.DiffTimeoutSecs)
	}
	if c.OnConflict != ConflictReject && c.OnConflict != ConflictOverwrite {
		return fmt.Errorf("on_conflict must be %q or %q, got %q", ConflictReject, ConflictOverwrite, c.OnConflict)
	}
	return nil
}

// DiffTimeout returns the per-commit summarization deadline.
func (c *Config) DiffTimeout() time.Duration {
	return time.Duration(c.DiffTimeoutSecs) * time.Second
}

// EnsureDataDir creates the directory holding the database if it does not exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(filepath.Dir(c.DBPath), 0755)
}

// ConfigPath returns the default path to the config file.
func ConfigPath() string {
	return filepath.Join(DefaultDataDir(), "config.json")
}
