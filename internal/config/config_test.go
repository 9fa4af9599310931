package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 50, cfg.Harvest.PerQuery)
	assert.Equal(t, "en", cfg.Harvest.Language)
	assert.Equal(t, 500*time.Millisecond, cfg.Mining.Delay())
	assert.Equal(t, 48*time.Hour, cfg.Learning.Lookback())
	assert.Equal(t, 10.0, cfg.Bandit.RewardDivisor)
	assert.Len(t, cfg.Bandit.Formats, 6)
	assert.Len(t, cfg.Bandit.HookTypes, 6)
	assert.Len(t, cfg.Bandit.PayloadTypes, 5)
	assert.Equal(t, 8, cfg.Policy.MaxPerDay)
	assert.Equal(t, time.Hour, cfg.Worker.Interval())
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `
bandit:
  formats: [listicle, question]
  topics: [kei_trucks]
  reward_divisor: 20
policy:
  ng_expressions: ["guaranteed returns"]
  max_per_day: 4
platforms:
  x:
    enabled: true
    hourly_limit: 3
timezone: Asia/Tokyo
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"listicle", "question"}, cfg.Bandit.Formats)
	assert.Equal(t, 20.0, cfg.Bandit.RewardDivisor)
	assert.Equal(t, 4, cfg.Policy.MaxPerDay)
	assert.Equal(t, []domain.Platform{domain.PlatformX}, cfg.EnabledPlatforms())
	assert.Equal(t, 3, cfg.HourlyLimits()[domain.PlatformX])
	assert.Equal(t, "Asia/Tokyo", cfg.Location().String())
}

func TestLoadFromEnvOverrides(t *testing.T) {
	path := writeConfig(t, "database:\n  url: postgres://local/dev\n")

	t.Setenv("DATABASE_URL", "postgres://prod/agent")
	t.Setenv("X_BEARER_TOKEN", "tok-abc")
	t.Setenv("SNAPSHOT_S3_BUCKET", "agent-state")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://prod/agent", cfg.Database.URL)
	assert.Equal(t, "tok-abc", cfg.Platforms.X.BearerToken)
	assert.True(t, cfg.Platforms.X.Enabled, "a token in the env enables the platform")
	assert.True(t, cfg.Snapshot.Enabled)
	assert.Equal(t, "agent-state", cfg.Snapshot.S3Bucket)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{Timezone: "Not/AZone"}
	assert.Equal(t, time.UTC, cfg.Location())
}
