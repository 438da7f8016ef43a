package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, int64(100), cfg.Business.DailyRewardAmount)
	assert.Equal(t, 24*time.Hour, cfg.Business.DailyCooldown())
	assert.Equal(t, "kill_log", cfg.Kafka.Topic.KillLog)
	assert.Equal(t, 15*time.Minute, cfg.Jobs.ReconcileInterval)
}

func TestLoadConfig_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: postgres
  host: db
  port: 5432
business:
  daily_reward_amount: 250
jobs:
  outbox_interval: 500ms
`), 0o644))

	t.Setenv("CORE_BUSINESS_DAILY_COOLDOWN_HOURS", "12")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, int64(250), cfg.Business.DailyRewardAmount)
	assert.Equal(t, 12*time.Hour, cfg.Business.DailyCooldown())
	assert.Equal(t, 500*time.Millisecond, cfg.Jobs.OutboxInterval)
	// 未覆盖的项保持默认
	assert.Equal(t, 5, cfg.Business.MaxRetryCount)
}

func TestLoadConfig_RejectsNonPositiveCooldown(t *testing.T) {
	t.Setenv("CORE_BUSINESS_DAILY_COOLDOWN_HOURS", "0")
	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
