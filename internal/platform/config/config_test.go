package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Run("requires tenant and client", func(t *testing.T) {
		t.Setenv("AZ_TENANT_ID", "")
		t.Setenv("AZ_CLIENT_ID", "")
		_, err := FromEnv()
		require.Error(t, err)

		t.Setenv("AZ_TENANT_ID", "tenant-1")
		_, err = FromEnv()
		require.Error(t, err)
	})

	t.Run("applies defaults", func(t *testing.T) {
		t.Setenv("AZ_TENANT_ID", "tenant-1")
		t.Setenv("AZ_CLIENT_ID", "client-1")

		cfg, err := FromEnv()
		require.NoError(t, err)

		assert.Equal(t, ":8080", cfg.Addr)
		assert.Equal(t, "photo", cfg.FaceCheckSourceClaim)
		assert.Equal(t, 70, cfg.FaceCheckThreshold)
		assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
		assert.Equal(t, 30*time.Second, cfg.UpstreamTimeout)
		assert.Equal(t, "vcrelay.callback-events", cfg.KafkaTopic)
		assert.NotEmpty(t, cfg.APIKey)
	})

	t.Run("reads overrides", func(t *testing.T) {
		t.Setenv("AZ_TENANT_ID", "tenant-1")
		t.Setenv("AZ_CLIENT_ID", "client-1")
		t.Setenv("VCRELAY_ADDR", ":9090")
		t.Setenv("SESSION_TTL", "5m")
		t.Setenv("FACECHECK_THRESHOLD", "85")
		t.Setenv("REDIS_URL", "redis://localhost:6379/0")

		cfg, err := FromEnv()
		require.NoError(t, err)

		assert.Equal(t, ":9090", cfg.Addr)
		assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
		assert.Equal(t, 85, cfg.FaceCheckThreshold)
		assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	})

	t.Run("api key is fresh per call", func(t *testing.T) {
		t.Setenv("AZ_TENANT_ID", "tenant-1")
		t.Setenv("AZ_CLIENT_ID", "client-1")

		a, err := FromEnv()
		require.NoError(t, err)
		b, err := FromEnv()
		require.NoError(t, err)
		assert.NotEqual(t, a.APIKey, b.APIKey)
	})
}
