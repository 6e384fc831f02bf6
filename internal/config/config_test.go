package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AEGIS_DB_PATH", filepath.Join(t.TempDir(), "aegis.db"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 80, cfg.BlockThreshold)
	assert.Equal(t, 40, cfg.ChallengeThreshold)
	assert.Equal(t, 100, cfg.RateLimit)
	assert.Equal(t, 60*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, 500*time.Millisecond, cfg.EvaluatorTimeout)
	assert.Equal(t, 30*time.Second, cfg.SnapshotRefresh)
	assert.Equal(t, 10, cfg.CanaryPercent)
	assert.InDelta(t, 0.9, cfg.PromoteSuccessRate, 0.001)
	assert.InDelta(t, 0.05, cfg.PromoteMaxFPR, 0.001)
	assert.Equal(t, 20, cfg.PromoteMinSamples)
	assert.Equal(t, 24*time.Hour, cfg.ReviewTimeout)
	assert.InDelta(t, 0.8, cfg.AdaptiveConfidence, 0.001)
	assert.Empty(t, cfg.GeoBlockedCountries)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AEGIS_DB_PATH", filepath.Join(t.TempDir(), "aegis.db"))
	t.Setenv("AEGIS_ENV", "production")
	t.Setenv("AEGIS_HTTP_PORT", "9090")
	t.Setenv("AEGIS_BLOCK_THRESHOLD", "90")
	t.Setenv("AEGIS_RATE_LIMIT", "250")
	t.Setenv("AEGIS_RATE_WINDOW", "30s")
	t.Setenv("AEGIS_PROMOTE_SUCCESS_RATE", "0.95")
	t.Setenv("AEGIS_GEO_BLOCKED", "kp, ir")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, 90, cfg.BlockThreshold)
	assert.Equal(t, 250, cfg.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.RateLimitWindow)
	assert.InDelta(t, 0.95, cfg.PromoteSuccessRate, 0.001)
	assert.Equal(t, []string{"KP", "IR"}, cfg.GeoBlockedCountries)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("AEGIS_DB_PATH", filepath.Join(t.TempDir(), "aegis.db"))
	t.Setenv("AEGIS_BLOCK_THRESHOLD", "not-a-number")
	t.Setenv("AEGIS_RATE_WINDOW", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 80, cfg.BlockThreshold)
	assert.Equal(t, 60*time.Second, cfg.RateLimitWindow)
}
