// Package app provides application initialization and dependency injection.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/offline-cache/config"
	"github.com/guttosm/offline-cache/internal/intermediary"
	"github.com/guttosm/offline-cache/internal/service"
	"github.com/rs/zerolog/log"
)

// App is the wired gateway.
type App struct {
	cfg          config.Config
	stores       *StoreComponents
	services     *ServiceComponents
	intermediary *intermediary.Intermediary
	router       *gin.Engine
	stopRouter   func()

	// cancel stops boot-time background work such as the preload.
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// Bootstrap builds every component once and runs the boot sequence: store init, auto cleanup,
// intermediary install and activation, then the preload. The HTTP server starts with Run.
func Bootstrap(ctx context.Context, cfg config.Config) (*App, error) {
	InitializeLogger(cfg.Log)
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	stores, err := InitializeStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize store: %w", err)
	}

	svc := InitializeServices(cfg, stores.Store)

	if cfg.Cleanup.AutoCleanup {
		svc.Cleanup.StartAutoCleanup()
	} else {
		log.Info().Msg("Automatic cache cleanup disabled")
	}

	im, err := intermediary.New(intermediary.Config{
		Version:              cfg.Intermediary.Version,
		OriginURL:            cfg.Intermediary.OriginURL,
		PrecachePaths:        cfg.Intermediary.PrecachePaths,
		APIMarker:            cfg.Intermediary.APIMarker,
		TileSources:          cfg.Tiles.Sources,
		DevServerHost:        cfg.Intermediary.DevServerHost,
		NetworkTimeout:       cfg.Intermediary.NetworkTimeout,
		SkipWebSocketCaching: cfg.Intermediary.SkipWebSocketCaching,
		SkipViteResources:    cfg.Intermediary.SkipViteResources,
	}, stores.Store, svc.Fetcher, svc.Engine, svc.Bus)
	if err != nil {
		svc.Cleanup.StopAutoCleanup()
		svc.Runner.Stop()
		_ = stores.Close(ctx)
		return nil, fmt.Errorf("initialize intermediary: %w", err)
	}

	if cfg.Intermediary.Disabled {
		log.Info().Msg("Intermediary disabled, requests pass straight through to the origin")
	} else {
		activateIntermediary(ctx, im)
	}

	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	switch {
	case cfg.Preload.Enabled && cfg.Preload.Await:
		bootPreload(ctx, svc.Preload)
	case cfg.Preload.Enabled:
		go bootPreload(bgCtx, svc.Preload)
	default:
		log.Info().Msg("Boot preload disabled")
	}

	routerComponents := InitializeRouter(cfg, stores, svc, im)
	router, stopRouter := routerComponents.newEngine(im)

	return &App{
		cfg:          cfg,
		stores:       stores,
		services:     svc,
		intermediary: im,
		router:       router,
		stopRouter:   stopRouter,
		cancel:       cancel,
	}, nil
}

func bootPreload(ctx context.Context, preload *service.PreloadService) {
	report := preload.PreloadAll(ctx)
	log.Info().Int("progress", report.Progress).Bool("offline", report.Offline).Msg("Boot preload finished")
}

// activateIntermediary installs and activates im. A failed install leaves it redundant, so
// every request passes through; the gateway still serves.
func activateIntermediary(ctx context.Context, im *intermediary.Intermediary) {
	if err := im.Install(ctx); err != nil {
		log.Error().Err(err).Msg("Intermediary install failed, serving without offline support")
		return
	}
	if err := im.Activate(ctx); err != nil {
		log.Error().Err(err).Msg("Intermediary activation failed")
		return
	}
	log.Info().Str("version", im.Version()).Msg("Intermediary activated")
}

// Handler returns the HTTP handler of the gateway.
func (a *App) Handler() http.Handler {
	return a.router
}

// Intermediary returns the request interceptor.
func (a *App) Intermediary() *intermediary.Intermediary {
	return a.intermediary
}

// Run serves until ctx is done or a shutdown signal arrives, then releases every component.
func (a *App) Run(ctx context.Context) error {
	server := NewServer(a.router, a.cfg.Server.Port)
	server.RegisterOnShutdown(a.services.Bus.Close)
	runErr := server.Run(ctx)
	return errors.Join(runErr, a.Close(context.Background()))
}

// Close stops background work and closes the store. Later calls return the first result.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		a.cancel()
		a.stopRouter()
		a.services.Cleanup.StopAutoCleanup()
		a.services.Runner.Stop()
		if err := a.stores.Close(ctx); err != nil {
			a.closeErr = fmt.Errorf("close store: %w", err)
			return
		}
		log.Info().Msg("Gateway stopped")
	})
	return a.closeErr
}
