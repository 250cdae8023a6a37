// Package app provides router configuration.
package app

import (
	"github.com/gin-gonic/gin"
	"github.com/guttosm/offline-cache/config"
	"github.com/guttosm/offline-cache/internal/http"
	"github.com/guttosm/offline-cache/internal/intermediary"
)

// RouterComponents holds router-related components.
type RouterComponents struct {
	Handler       *http.Handler
	HealthHandler *http.HealthHandler
	Config        http.RouterConfig
}

// InitializeRouter builds the admin handlers and the health checks.
func InitializeRouter(cfg config.Config, stores *StoreComponents, svc *ServiceComponents, im *intermediary.Intermediary) *RouterComponents {
	handler := &http.Handler{
		Store:        stores.Store,
		Images:       svc.Images,
		Tiles:        svc.Tiles,
		Cleanup:      svc.Cleanup,
		Preload:      svc.Preload,
		Fonts:        svc.Fonts,
		Handles:      svc.Handles,
		Intermediary: im,
		Runner:       svc.Runner,
		Bus:          svc.Bus,
	}

	healthHandler := http.NewHealthHandler()
	healthHandler.RegisterChecker("store", stores.Store.Ping)
	healthHandler.RegisterCircuitBreaker("mongodb", stores.Breaker)
	healthHandler.RegisterBreakerSource("upstream", svc.Fetcher.BreakerStats)

	return &RouterComponents{
		Handler:       handler,
		HealthHandler: healthHandler,
		Config: http.RouterConfig{
			RateLimit:      cfg.Server.RateLimit,
			RateWindow:     cfg.Server.RateWindow,
			CORSOrigins:    cfg.Server.CORSOrigins,
			RequestTimeout: http.DefaultRouterConfig().RequestTimeout,
		},
	}
}

// newEngine builds the gin engine with every request not under the admin prefix sent to im.
func (rc *RouterComponents) newEngine(im *intermediary.Intermediary) (*gin.Engine, func()) {
	return http.NewRouter(rc.Handler, rc.HealthHandler, im, rc.Config)
}
