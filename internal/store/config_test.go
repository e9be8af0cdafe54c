package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "https://iss.moex.com", cfg.ISS.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Timeout())
	assert.Equal(t, 20*time.Second, cfg.BoardTimeout())
	assert.Equal(t, time.Hour, cfg.CacheTTL())
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, []int{429, 500, 502, 503, 504}, cfg.Retry.Statuses)
	assert.Equal(t, []string{"tqob", "tqcb"}, cfg.Boards)
	assert.Equal(t, 10, cfg.Workers)
	assert.Equal(t, 2, cfg.Risk.OvernightDays)
	assert.Equal(t, 366, cfg.Risk.MaxExtraDays)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
iss:
  base_url: http://localhost:9999/
workers: 4
boards: [tqcb]
risk:
  overnight_days: 3
audit:
  retention_days: 14
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("PRETRADE_WORKERS", "7")
	t.Setenv("PRETRADE_AUDIT_DIR", "/var/log/pretrade")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999", cfg.ISS.BaseURL)
	assert.Equal(t, 7, cfg.Workers)
	assert.Equal(t, []string{"tqcb"}, cfg.Boards)
	assert.Equal(t, 3, cfg.Risk.OvernightDays)
	assert.Equal(t, "/var/log/pretrade", cfg.Audit.Dir)
	assert.Equal(t, 14, cfg.Audit.RetentionDays)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{"too many workers", "workers: 100\n"},
		{"bad timezone", "timezone: Mars/Olympus\n"},
		{"inverted extra days", "risk:\n  min_extra_days: 10\n  max_extra_days: 5\n"},
		{"negative audit retention", "audit:\n  retention_days: -1\n"},
		{"inverted backoff", "retry:\n  initial_wait_ms: 5000\n  max_wait_ms: 100\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yml), 0o644))
			_, err := LoadConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config validation failed")
		})
	}
}

func TestLoadConfigBadEnv(t *testing.T) {
	t.Setenv("PRETRADE_WORKERS", "many")
	_, err := LoadConfig("")
	require.Error(t, err)
}
