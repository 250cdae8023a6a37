package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/guttosm/offline-cache/docs"
	"github.com/guttosm/offline-cache/internal/metrics"
	"github.com/guttosm/offline-cache/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// AdminPrefix is the path under which the admin API lives. Everything else is intercepted.
const AdminPrefix = "/_sw"

// RouterConfig holds router configuration options.
type RouterConfig struct {
	RateLimit      int
	RateWindow     time.Duration
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// DefaultRouterConfig returns the default router configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		RateLimit:      600,
		RateWindow:     time.Minute,
		RequestTimeout: 30 * time.Second,
	}
}

// NewRouter builds the gateway router: the admin API under AdminPrefix and proxy for every other
// path. Only the admin API is rate limited. The returned stop function releases the limiter.
func NewRouter(handler *Handler, healthHandler *HealthHandler, proxy http.Handler, cfg RouterConfig) (*gin.Engine, func()) {
	router := gin.New()
	router.HandleMethodNotAllowed = false

	router.Use(
		middleware.CORS(cfg.CORSOrigins),
		middleware.RequestID(),
		middleware.Recovery(),
		metrics.PrometheusMiddleware(),
		middleware.RequestLogger(),
		middleware.ErrorHandler(),
	)

	admin := router.Group(AdminPrefix)
	stop := func() {}
	if cfg.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow)
		admin.Use(limiter.RateLimit())
		stop = limiter.Stop
	}

	healthHandler.Register(admin)
	admin.GET("/metrics", gin.WrapH(promhttp.Handler()))
	admin.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	// the event stream outlives any request timeout and must not be buffered
	admin.GET("/events", handler.Events)

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRouterConfig().RequestTimeout
	}
	api := admin.Group("", middleware.TimeoutWithDuration(timeout), middleware.Compression())
	registerAdminRoutes(api, handler)

	router.NoRoute(gin.WrapH(proxy))
	return router, stop
}

func registerAdminRoutes(rg *gin.RouterGroup, h *Handler) {
	rg.POST("/message", h.Message)
	rg.GET("/stats", h.Stats)
	rg.POST("/cleanup", h.PerformCleanup)
	rg.DELETE("/cache", h.ClearCache)

	rg.POST("/preload", h.PreloadAll)
	rg.GET("/preload/progress", h.PreloadProgress)
	rg.PUT("/preload/config", h.UpdatePreloadConfig)

	rg.GET("/images", h.LoadImage)
	rg.GET("/tiles/:z/:x/:y", h.GetTile)
	rg.POST("/tiles/preload", h.PreloadTiles)
	rg.GET("/fonts", h.ListFonts)
	rg.GET("/blob/:id", h.Blob)
}
