// Package app provides service initialization.
package app

import (
	"github.com/guttosm/offline-cache/config"
	"github.com/guttosm/offline-cache/internal/circuitbreaker"
	"github.com/guttosm/offline-cache/internal/events"
	"github.com/guttosm/offline-cache/internal/fetch"
	"github.com/guttosm/offline-cache/internal/handles"
	"github.com/guttosm/offline-cache/internal/service"
	"github.com/guttosm/offline-cache/internal/strategy"
)

// ServiceComponents holds the cache services and their shared collaborators.
type ServiceComponents struct {
	Bus     *events.Bus
	Fetcher *fetch.Client
	Runner  *strategy.Runner
	Engine  *strategy.Engine
	Handles *handles.Registry
	Images  *service.ImageCache
	Tiles   *service.TileCache
	Fonts   *service.FontLibrary
	Cleanup *service.CleanupService
	Preload *service.PreloadService
}

// InitializeServices builds every service once over st.
func InitializeServices(cfg config.Config, st cacheStore) *ServiceComponents {
	bus := events.NewBus()

	fetcher := fetch.New(fetch.Config{
		Timeout:     cfg.Fetch.Timeout,
		MaxBodySize: cfg.Fetch.MaxBodySize,
		UserAgent:   cfg.Fetch.UserAgent,
		ProbeURL:    cfg.Fetch.ProbeURL,
		Breaker: circuitbreaker.Config{
			FailureThreshold: cfg.Fetch.FailureThreshold,
			SuccessThreshold: cfg.Fetch.SuccessThreshold,
			Timeout:          cfg.Fetch.BreakerTimeout,
			Name:             "upstream",
		},
	})

	runner := strategy.NewRunner(strategy.DefaultRunnerConfig())
	var engineOpts []strategy.Option
	if cfg.Store.Disabled {
		engineOpts = append(engineOpts, strategy.WithCacheDisabled())
	}
	engine := strategy.NewEngine(st, runner, engineOpts...)
	registry := handles.NewRegistry(handles.DefaultPrefix)

	images := service.NewImageCache(st, fetcher, registry)
	tiles := service.NewTileCache(service.TileCacheConfig{
		Sources:     cfg.Tiles.Sources,
		RateLimit:   cfg.Tiles.RateLimit,
		Concurrency: cfg.Tiles.Concurrency,
	}, st, fetcher, registry)
	fonts := service.NewFontLibrary()

	cleanup := service.NewCleanupService(service.CleanupConfig{
		AutoCleanup: cfg.Cleanup.AutoCleanup,
		Interval:    cfg.Cleanup.Interval,
		MaxSize:     cfg.Cleanup.MaxSize,
		MaxAge:      cfg.Cleanup.MaxAge,
		Threshold:   cfg.Cleanup.Threshold,
	}, st, images, tiles, bus)

	preload := service.NewPreloadService(service.PreloadConfig{
		CriticalImages: cfg.Preload.CriticalImages,
		Center:         cfg.Preload.Center,
		Zoom:           cfg.Preload.Zoom,
		Radius:         cfg.Preload.Radius,
		Fonts:          cfg.Preload.Fonts,
		Icons:          cfg.Preload.Icons,
	}, service.PreloadDeps{
		Images:       images,
		Tiles:        tiles,
		Engine:       engine,
		Fetcher:      fetcher,
		Fonts:        fonts,
		Connectivity: fetcher,
		Bus:          bus,
	})

	return &ServiceComponents{
		Bus:     bus,
		Fetcher: fetcher,
		Runner:  runner,
		Engine:  engine,
		Handles: registry,
		Images:  images,
		Tiles:   tiles,
		Fonts:   fonts,
		Cleanup: cleanup,
		Preload: preload,
	}
}
