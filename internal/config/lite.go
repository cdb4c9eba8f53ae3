// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for data files

	// Catalog
	CatalogPath string // Optional: YAML cohort catalog, built-in when empty

	// Reminder dedupe
	DedupeTTL time.Duration

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".cohort-outreach")

	return &LiteConfig{
		DataDir:   dataDir,
		DedupeTTL: 24 * time.Hour,
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("COHORT_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("COHORT_CATALOG_PATH"); v != "" {
		cfg.CatalogPath = v
	}
	if v := os.Getenv("COHORT_DEDUPE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.DedupeTTL = d
		}
	}
	if v := os.Getenv("COHORT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("COHORT_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// PatientDBPath returns the path to the patient registry SQLite database.
func (c *LiteConfig) PatientDBPath() string {
	return filepath.Join(c.DataDir, "patients.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}
