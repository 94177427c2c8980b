package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envOf(nil))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "./data/residuals.db", cfg.DBPath)
	assert.False(t, cfg.Auth.Enabled)
	assert.False(t, cfg.Ledger.Enabled())
	assert.Equal(t, "Payouts", cfg.Ledger.Table)
	assert.Equal(t, 10, cfg.Ledger.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Ledger.BatchDelay)
	assert.Equal(t, 1000, cfg.Store.PageSize)
	assert.Equal(t, 5*time.Minute, cfg.Cache.PartnerTTL)
	assert.Equal(t, 1024, cfg.Cache.PartnerSize)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"HTTP_PORT":          "9090",
		"LEDGER_BASE_URL":    "https://ledger.example.com/",
		"LEDGER_API_KEY":     "key",
		"LEDGER_BASE_ID":     "app123",
		"LEDGER_BATCH_SIZE":  "25",
		"LEDGER_BATCH_DELAY": "1s",
		"PARTNER_CACHE_TTL":  "30s",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.True(t, cfg.Ledger.Enabled())
	assert.Equal(t, "https://ledger.example.com", cfg.Ledger.BaseURL)
	assert.Equal(t, 10, cfg.Ledger.BatchSize, "batch size is capped at the ledger limit")
	assert.Equal(t, time.Second, cfg.Ledger.BatchDelay)
	assert.Equal(t, 30*time.Second, cfg.Cache.PartnerTTL)
}

func TestFromEnv_Malformed(t *testing.T) {
	_, err := FromEnv(envOf(map[string]string{
		"HTTP_PORT":          "eighty",
		"LEDGER_BATCH_DELAY": "soon",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_PORT")
	assert.Contains(t, err.Error(), "LEDGER_BATCH_DELAY")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"auth without secret", map[string]string{"AUTH_ENABLED": "true"}},
		{"port out of range", map[string]string{"HTTP_PORT": "70000"}},
		{"ledger without base ID", map[string]string{"LEDGER_BASE_URL": "https://x", "LEDGER_API_KEY": "k"}},
		{"ledger without key", map[string]string{"LEDGER_BASE_URL": "https://x", "LEDGER_BASE_ID": "b"}},
		{"zero page size", map[string]string{"STORE_PAGE_SIZE": "0"}},
		{"negative delay", map[string]string{"LEDGER_BATCH_DELAY": "-1s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := FromEnv(envOf(tt.env))
			require.NoError(t, err)
			assert.Error(t, cfg.Validate())
		})
	}
}
