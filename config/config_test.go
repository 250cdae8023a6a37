package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Run("loads production defaults", func(t *testing.T) {
		os.Clearenv()

		cfg := Load()

		assert.Equal(t, EnvProduction, cfg.Env)
		assert.Equal(t, "8080", cfg.Server.Port)
		assert.Equal(t, time.Minute, cfg.Server.RateWindow)
		assert.Equal(t, "bolt", cfg.Store.Backend)
		assert.Equal(t, int64(100*1024*1024), cfg.Store.MaxSize)
		assert.Equal(t, 7*24*time.Hour, cfg.Store.MaxAge)
		assert.Equal(t, cfg.Store.MaxSize, cfg.Cleanup.MaxSize)
		assert.InDelta(t, 0.8, cfg.Cleanup.Threshold, 1e-9)
		assert.False(t, cfg.Intermediary.Disabled)
		assert.False(t, cfg.Intermediary.SkipWebSocketCaching)
		assert.False(t, cfg.Intermediary.SkipViteResources)
		assert.False(t, cfg.Log.Debug)
		assert.Equal(t, 5*time.Second, cfg.Intermediary.NetworkTimeout)
		assert.Len(t, cfg.Tiles.Sources, 3)
		assert.Equal(t, [2]float64{-75.5138, 5.0703}, cfg.Preload.Center)
		assert.True(t, cfg.Preload.Await)
	})

	t.Run("development defaults disable the intermediary and enable bypasses", func(t *testing.T) {
		os.Clearenv()
		_ = os.Setenv("APP_ENV", "development")
		defer os.Clearenv()

		cfg := Load()

		assert.True(t, cfg.IsDevelopment())
		assert.True(t, cfg.Intermediary.Disabled)
		assert.True(t, cfg.Intermediary.SkipWebSocketCaching)
		assert.True(t, cfg.Intermediary.SkipViteResources)
		assert.True(t, cfg.Log.Debug)
	})

	t.Run("explicit flags override environment defaults", func(t *testing.T) {
		os.Clearenv()
		_ = os.Setenv("APP_ENV", "development")
		_ = os.Setenv("DISABLE_SERVICE_WORKER", "false")
		_ = os.Setenv("DISABLE_CACHE", "true")
		defer os.Clearenv()

		cfg := Load()

		assert.False(t, cfg.Intermediary.Disabled)
		assert.True(t, cfg.Store.Disabled)
	})

	t.Run("loads values from environment", func(t *testing.T) {
		os.Clearenv()
		_ = os.Setenv("PORT", "9090")
		_ = os.Setenv("CACHE_MAX_SIZE", "1000")
		_ = os.Setenv("CACHE_MAX_AGE", "1s")
		_ = os.Setenv("CLEANUP_THRESHOLD", "0.5")
		_ = os.Setenv("TILE_SOURCES", " https://t1.example , https://t2.example ")
		_ = os.Setenv("PRELOAD_CENTER", "-74.08,4.61")
		_ = os.Setenv("PRECACHE_PATHS", "/app.js,/app.css")
		_ = os.Setenv("PRELOAD_AWAIT", "false")
		defer os.Clearenv()

		cfg := Load()

		assert.Equal(t, "9090", cfg.Server.Port)
		assert.Equal(t, int64(1000), cfg.Store.MaxSize)
		assert.Equal(t, time.Second, cfg.Cleanup.MaxAge)
		assert.InDelta(t, 0.5, cfg.Cleanup.Threshold, 1e-9)
		assert.Equal(t, []string{"https://t1.example", "https://t2.example"}, cfg.Tiles.Sources)
		assert.Equal(t, [2]float64{-74.08, 4.61}, cfg.Preload.Center)
		assert.Equal(t, []string{"/app.js", "/app.css"}, cfg.Intermediary.PrecachePaths)
		assert.False(t, cfg.Preload.Await)
	})

	t.Run("handles invalid values gracefully", func(t *testing.T) {
		os.Clearenv()
		_ = os.Setenv("RATE_LIMIT", "invalid")
		_ = os.Setenv("CACHE_MAX_SIZE", "huge")
		_ = os.Setenv("CLEANUP_INTERVAL", "invalid")
		_ = os.Setenv("PRELOAD_CENTER", "nowhere")
		defer os.Clearenv()

		cfg := Load()

		assert.Equal(t, 600, cfg.Server.RateLimit)
		assert.Equal(t, int64(100*1024*1024), cfg.Store.MaxSize)
		assert.Equal(t, 30*time.Minute, cfg.Cleanup.Interval)
		assert.Equal(t, [2]float64{-75.5138, 5.0703}, cfg.Preload.Center)
	})

	t.Run("returns nil for empty preload lists", func(t *testing.T) {
		os.Clearenv()

		cfg := Load()

		assert.Nil(t, cfg.Preload.CriticalImages)
		assert.Nil(t, cfg.Preload.Fonts)
		assert.Nil(t, cfg.Preload.Icons)
	})
}
