//go:build !integration

package app

import (
	"context"
	"testing"

	"github.com/guttosm/offline-cache/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestInitializeServices(t *testing.T) {
	cfg := testConfig(t, "http://origin.test")
	cfg.Preload.Zoom = 14
	cfg.Preload.CriticalImages = []string{"http://origin.test/hero.png"}

	svc := InitializeServices(cfg, store.Disabled{})
	t.Cleanup(svc.Runner.Stop)

	assert.NotNil(t, svc.Bus)
	assert.NotNil(t, svc.Fetcher)
	assert.NotNil(t, svc.Engine)
	assert.NotNil(t, svc.Handles)
	assert.NotNil(t, svc.Images)
	assert.NotNil(t, svc.Fonts)
	assert.Equal(t, cfg.Tiles.Sources, svc.Tiles.Sources())
	assert.Equal(t, cfg.Cleanup.Threshold, svc.Cleanup.Config().Threshold)
	assert.False(t, svc.Cleanup.Running())
	assert.Equal(t, 14, svc.Preload.Config().Zoom)
	assert.Equal(t, cfg.Preload.CriticalImages, svc.Preload.Config().CriticalImages)
	assert.True(t, svc.Fetcher.Online(context.Background()), "no probe URL means online")
	assert.False(t, svc.Engine.CacheDisabled())
}

func TestInitializeServices_DisabledCache(t *testing.T) {
	cfg := testConfig(t, "http://origin.test")
	cfg.Store.Disabled = true

	svc := InitializeServices(cfg, store.Disabled{})
	t.Cleanup(svc.Runner.Stop)

	assert.True(t, svc.Engine.CacheDisabled())
}
