package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chative-creator-core/server/internal/core"
)

func requiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("POSTGRES_DSN", "postgres://app@localhost/app")
	t.Setenv("GEMINI_API_KEY", "test-key")
}

func TestLoad_Defaults(t *testing.T) {
	requiredEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, core.Development, cfg.Environment())
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, 20, cfg.Redis.PoolSize)
	assert.Equal(t, "postgres://app@localhost/app", cfg.Postgres.DSN)
	assert.Equal(t, int64(3), cfg.Quota.FreeDaily)
	assert.Equal(t, int64(0), cfg.Quota.ProDaily)
	assert.Equal(t, 24*time.Hour, cfg.Memory.TTL)
	assert.Equal(t, 50, cfg.Memory.MaxMessages)
	assert.Equal(t, 5, cfg.Memory.LongTermMatches)
	assert.Equal(t, 3, cfg.Analytics.LagDays)
	assert.Equal(t, "https://www.googleapis.com/youtube/v3", cfg.Analytics.DataURL)
	assert.Equal(t, 60*time.Second, cfg.Executor.Timeout)
	assert.Equal(t, "gemini-2.5-flash", cfg.Response.Model)
	assert.Equal(t, "https://oauth2.googleapis.com/token", cfg.OAuth.TokenURL)
	assert.Empty(t, cfg.Planner.RulesFile)
}

func TestLoad_Overrides(t *testing.T) {
	requiredEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("QUOTA_FREE_DAILY", "10")
	t.Setenv("MEMORY_TTL", "2h")
	t.Setenv("PLANNER_RULES_FILE", "/etc/rules.yaml")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Environment().IsProduction())
	assert.Equal(t, int64(10), cfg.Quota.FreeDaily)
	assert.Equal(t, 2*time.Hour, cfg.Memory.TTL)
	assert.Equal(t, "/etc/rules.yaml", cfg.Planner.RulesFile)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	requiredEnv(t)
	require.NoError(t, os.Unsetenv("GEMINI_API_KEY"))

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestLoad_RejectsNegativeQuota(t *testing.T) {
	requiredEnv(t)
	t.Setenv("QUOTA_PRO_DAILY", "-1")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_ReadsDotenvFile(t *testing.T) {
	requiredEnv(t)
	t.Setenv("QUOTA_AGENCY_DAILY", "")
	require.NoError(t, os.Unsetenv("QUOTA_AGENCY_DAILY"))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("QUOTA_AGENCY_DAILY=7\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("QUOTA_AGENCY_DAILY") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.Quota.AgencyDaily)
}

func TestLoadDotenv_MissingFileIsFine(t *testing.T) {
	assert.NoError(t, LoadDotenv(filepath.Join(t.TempDir(), "absent.env")))
}
