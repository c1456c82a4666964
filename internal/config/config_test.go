package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("LEADERBOARD_CACHE_TTL", "30s")
	t.Setenv("RECONCILE_INTERVAL", "1h")
	t.Setenv("PLATFORM_TIMEOUT", "10s")
	t.Setenv("DB_SLOW_QUERY", "200ms")
	t.Setenv("MEILISEARCH_HOST", "meili")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.LeaderboardCacheTTL)
	assert.Equal(t, time.Hour, cfg.ReconcileInterval)
	assert.Equal(t, 200*time.Millisecond, cfg.DBSlowQuery)
	assert.Equal(t, "dev-secret", cfg.JWTSecret)
	assert.Equal(t, "http://meili:7700", cfg.MeiliSearchHost)
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("LEADERBOARD_CACHE_TTL", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LEADERBOARD_CACHE_TTL")
}

func TestLoadProductionRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("LEADERBOARD_CACHE_TTL", "30s")
	t.Setenv("RECONCILE_INTERVAL", "1h")
	t.Setenv("PLATFORM_TIMEOUT", "10s")
	t.Setenv("DB_SLOW_QUERY", "200ms")

	_, err := Load()
	assert.Error(t, err)
}
