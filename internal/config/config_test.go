package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "file::memory:")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("MESSAGE_PAGE_SIZE", "")
	t.Setenv("LISTING_CACHE_TTL", "not-a-duration")

	cfg := Load()

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 10080, cfg.JWTExpiresMin)
	assert.Equal(t, 50, cfg.MessagePageSize)
	assert.Equal(t, time.Minute, cfg.ListingCacheTTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DSN", "file::memory:")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_BASE_URL", "https://api.example.com/")
	t.Setenv("RATING_SYNC_INTERVAL", "15m")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "https://api.example.com", cfg.AppBaseURL)
	assert.Equal(t, 15*time.Minute, cfg.RatingSyncInterval)
	assert.True(t, cfg.IsProduction())
}

func TestLoadPanicsWithoutSecret(t *testing.T) {
	t.Setenv("DB_DSN", "file::memory:")
	t.Setenv("JWT_SECRET", "")

	assert.PanicsWithValue(t, "missing env: JWT_SECRET", func() { Load() })
}
