package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.True(t, c.Storage.UseMemoryDB)
	assert.Equal(t, 8080, c.Server.Port)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_PATH", "/tmp/test.db")
	t.Setenv("USE_MEMORY_DB", "false")
	t.Setenv("BLOCKED_DOMAIN_KEYWORD", "letmein")
	t.Setenv("SYNC_IDLE_THRESHOLD_SECONDS", "5")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, "/tmp/test.db", c.Storage.DBPath)
	assert.False(t, c.Storage.UseMemoryDB)
	assert.Equal(t, "letmein", c.Blocklist.RemovalKeyword)
	assert.Equal(t, 5, c.Sync.IdleThresholdSeconds)
}

func TestValidate_RejectsBadPort(t *testing.T) {
	c := Default()
	c.Server.Port = 0
	assert.Error(t, c.Validate())
}

func TestValidate_RejectsEmptyDBPath(t *testing.T) {
	c := Default()
	c.Storage.DBPath = ""
	assert.Error(t, c.Validate())
}

func TestValidate_RejectsNonPositiveSyncIntervals(t *testing.T) {
	c := Default()
	c.Sync.PeriodicIntervalSeconds = 0
	assert.Error(t, c.Validate())
}
