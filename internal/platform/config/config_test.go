package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Addr)
		assert.Empty(t, cfg.DatabaseURL)
		assert.Equal(t, 5*time.Second, cfg.TxTimeout)
		assert.Zero(t, cfg.ReconcileInterval)
		assert.True(t, cfg.MetricsEnabled)
		assert.Equal(t, 10*time.Minute, cfg.Redis.LockTTL)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("LTED_ADDR", ":9090")
		t.Setenv("LTED_DATABASE_URL", "postgres://lted@localhost/lted")
		t.Setenv("LTED_RECONCILE_INTERVAL", "15m")
		t.Setenv("LTED_LOG_LEVEL", "debug")
		t.Setenv("LTED_REDIS_URL", "redis://localhost:6379/0")

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, ":9090", cfg.Addr)
		assert.Equal(t, "postgres://lted@localhost/lted", cfg.DatabaseURL)
		assert.Equal(t, 15*time.Minute, cfg.ReconcileInterval)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	})

	t.Run("negative interval is rejected", func(t *testing.T) {
		t.Setenv("LTED_RECONCILE_INTERVAL", "-1m")
		_, err := FromEnv()
		assert.Error(t, err)
	})

	t.Run("malformed duration is rejected", func(t *testing.T) {
		t.Setenv("LTED_TX_TIMEOUT", "soon")
		_, err := FromEnv()
		assert.Error(t, err)
	})
}
