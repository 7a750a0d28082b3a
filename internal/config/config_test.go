package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STASH_DATA_DIR", "")
	t.Setenv("AI_API_KEY", "")
	t.Setenv("API_KEY", "")

	cfg := Load()

	assert.Equal(t, "127.0.0.1:8090", cfg.Addr)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "file", cfg.Store)
	assert.Equal(t, "gemini", cfg.AIProvider)
	assert.Empty(t, cfg.AIAPIKey)
	assert.Equal(t, 60*time.Second, cfg.AITimeout)
	assert.Equal(t, "manual", cfg.BackupInterval)
	assert.Equal(t, "./data/backups", cfg.BackupDir)
	assert.False(t, cfg.LinkPreview)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STASH_STORE", "Redis")
	t.Setenv("AI_API_KEY", "")
	t.Setenv("API_KEY", "legacy-key")
	t.Setenv("AI_MAX_TOKENS", "not-a-number")
	t.Setenv("AI_RATE_PER_MINUTE", "5")
	t.Setenv("LINK_PREVIEW", "true")
	t.Setenv("BACKUP_INTERVAL", "DAILY")

	cfg := Load()

	assert.Equal(t, "redis", cfg.Store)
	assert.Equal(t, "legacy-key", cfg.AIAPIKey)
	assert.Equal(t, 1024, cfg.AIMaxTokens)
	assert.Equal(t, 5, cfg.AIRatePerMin)
	assert.True(t, cfg.LinkPreview)
	assert.Equal(t, "daily", cfg.BackupInterval)
}
