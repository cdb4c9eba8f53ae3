package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Empty(t, cfg.CatalogPath)
	assert.Equal(t, 24*time.Hour, cfg.DedupeTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	// Clear relevant env vars
	clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 24*time.Hour, cfg.DedupeTTL)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)

	// Set environment variables
	os.Setenv("COHORT_DATA_DIR", "/tmp/test-cohort")
	os.Setenv("COHORT_CATALOG_PATH", "/tmp/catalog.yaml")
	os.Setenv("COHORT_DEDUPE_TTL", "12h")
	os.Setenv("COHORT_LOG_LEVEL", "debug")
	os.Setenv("COHORT_LOG_FORMAT", "text")

	defer clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-cohort", cfg.DataDir)
	assert.Equal(t, "/tmp/catalog.yaml", cfg.CatalogPath)
	assert.Equal(t, 12*time.Hour, cfg.DedupeTTL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadLiteConfig_IgnoresBadTTL(t *testing.T) {
	clearEnvVars(t)

	os.Setenv("COHORT_DEDUPE_TTL", "not-a-duration")
	defer clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.Equal(t, 24*time.Hour, cfg.DedupeTTL)
}

func TestLiteConfig_PatientDBPath(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.cohort-outreach"}

	path := cfg.PatientDBPath()

	assert.Equal(t, "/home/user/.cohort-outreach/patients.db", path)
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	cfg := &LiteConfig{DataDir: filepath.Join(tmpDir, "cohort")}

	err = cfg.EnsureDataDir()
	require.NoError(t, err)

	// Verify directory exists
	_, err = os.Stat(cfg.DataDir)
	assert.NoError(t, err)
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"COHORT_DATA_DIR",
		"COHORT_CATALOG_PATH",
		"COHORT_DEDUPE_TTL",
		"COHORT_LOG_LEVEL",
		"COHORT_LOG_FORMAT",
	}
	for _, v := range vars {
		os.Unsetenv(v)
	}
}
