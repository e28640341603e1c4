package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("MAX_CONNECTIONS", "1000")
	t.Setenv("HEARTBEAT_INTERVAL", "30s")
	t.Setenv("QUEUE_FLUSH_INTERVAL", "5s")
}

func TestLoad_AllRequiredVarsSet(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, 1000, cfg.MaxConnections)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 5*time.Second, cfg.QueueFlushInterval)
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 0, cfg.QueueMaxAttempts)
	assert.Equal(t, 20, cfg.MaxConnectionsPerIP)
	assert.Equal(t, "eventwire:connections", cfg.ConnectionEventChannel)
}

func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		skipEnv string
		wantErr string
	}{
		{"missing DATABASE_URL", "DATABASE_URL", "DATABASE_URL is required"},
		{"missing REDIS_URL", "REDIS_URL", "REDIS_URL is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.skipEnv, "")

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestLoad_RealtimeTunablesHaveNoDefaults(t *testing.T) {
	tests := []struct {
		name    string
		skipEnv string
	}{
		{"missing MAX_CONNECTIONS", "MAX_CONNECTIONS"},
		{"missing HEARTBEAT_INTERVAL", "HEARTBEAT_INTERVAL"},
		{"missing QUEUE_FLUSH_INTERVAL", "QUEUE_FLUSH_INTERVAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.skipEnv, "")

			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoad_RejectsNonPositiveTunables(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAX_CONNECTIONS", "-5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_CONNECTIONS")
}

func TestLoad_RejectsNegativeQueueMaxAttempts(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("QUEUE_MAX_ATTEMPTS", "-1")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QUEUE_MAX_ATTEMPTS")
}
