package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/guttosm/offline-cache/internal/domain/model"
	"github.com/guttosm/offline-cache/internal/handles"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

var (
	// ErrNoTileSource is returned when neither the request nor the configuration names a source.
	ErrNoTileSource = errors.New("tile cache: no tile source configured")
	// ErrInvalidTile is returned for coordinates outside the tile grid.
	ErrInvalidTile = errors.New("tile cache: invalid tile coordinates")
)

// TileCacheConfig configures tile mirrors and politeness.
type TileCacheConfig struct {
	// Sources are base URLs of same-schema tile mirrors.
	Sources []string
	// RateLimit is requests per second per mirror. Zero disables limiting.
	RateLimit float64
	// Concurrency bounds parallel fetches during a preload.
	Concurrency int
}

// TileRequest identifies one tile. An empty Source uses the first configured mirror.
type TileRequest struct {
	Z      int    `json:"z" uri:"z"`
	X      int    `json:"x" uri:"x"`
	Y      int    `json:"y" uri:"y"`
	Source string `json:"source,omitempty" form:"source"`
}

// Coord returns the tile coordinate.
func (r TileRequest) Coord() model.TileCoord {
	return model.TileCoord{Z: r.Z, X: r.X, Y: r.Y}
}

// Valid reports whether the coordinate lies on the grid.
func (r TileRequest) Valid() bool {
	if r.Z < MinZoom || r.Z > MaxZoom {
		return false
	}
	n := 1 << r.Z
	return r.X >= 0 && r.X < n && r.Y >= 0 && r.Y < n
}

// TileCache loads map tiles through the persistent store and hands them out as object URLs.
type TileCache struct {
	cfg     TileCacheConfig
	store   Store
	fetcher Fetcher
	handles *handles.Registry

	group singleflight.Group

	mu       sync.Mutex
	urls     map[string]string
	limiters map[string]*rate.Limiter
}

// NewTileCache creates a tile cache.
func NewTileCache(cfg TileCacheConfig, store Store, fetcher Fetcher, registry *handles.Registry) *TileCache {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 6
	}
	return &TileCache{
		cfg:      cfg,
		store:    store,
		fetcher:  fetcher,
		handles:  registry,
		urls:     make(map[string]string),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Sources returns the configured mirrors.
func (c *TileCache) Sources() []string {
	return c.cfg.Sources
}

// GetTile returns an object URL for the tile.
func (c *TileCache) GetTile(ctx context.Context, req TileRequest) (string, error) {
	if !req.Valid() {
		return "", fmt.Errorf("%w: %d/%d/%d", ErrInvalidTile, req.Z, req.X, req.Y)
	}
	source := req.Source
	if source == "" {
		if len(c.cfg.Sources) == 0 {
			return "", ErrNoTileSource
		}
		source = c.cfg.Sources[0]
	}

	coord := req.Coord()
	key := TileKey(source, coord)
	v, err, _ := c.group.Do(key, func() (any, error) {
		if handle, ok := c.handle(key); ok {
			return handle, nil
		}
		return c.load(context.WithoutCancel(ctx), key, source, coord)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *TileCache) handle(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	handle, ok := c.urls[key]
	return handle, ok
}

func (c *TileCache) load(ctx context.Context, key, source string, coord model.TileCoord) (string, error) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Tile cache read failed, loading from network")
	}
	if data != nil {
		return c.register(key, data), nil
	}

	if err := c.limiter(source).Wait(ctx); err != nil {
		return "", fmt.Errorf("tile cache: rate limit %s: %w", source, err)
	}

	url := TileURL(source, coord)
	resp, err := c.fetcher.Get(ctx, url)
	if err != nil {
		return "", fmt.Errorf("tile cache: load %s: %w", url, err)
	}

	if err := c.store.Set(ctx, key, resp.Body, model.TypeTile); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("Tile cache write failed")
	}
	return c.register(key, resp.Body), nil
}

func (c *TileCache) limiter(source string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[source]
	if !ok {
		limit := rate.Inf
		if c.cfg.RateLimit > 0 {
			limit = rate.Limit(c.cfg.RateLimit)
		}
		l = rate.NewLimiter(limit, max(1, int(c.cfg.RateLimit)))
		c.limiters[source] = l
	}
	return l
}

func (c *TileCache) register(key string, data []byte) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if handle, ok := c.urls[key]; ok {
		return handle
	}
	handle := c.handles.Create(data)
	c.urls[key] = handle
	return handle
}

// PreloadTiles loads the square neighborhood of radius tiles around center at zoom.
// Mirrors are assigned round-robin per tile. Individual failures are counted, not returned.
func (c *TileCache) PreloadTiles(ctx context.Context, center [2]float64, zoom, radius int) (model.TilePreloadReport, error) {
	if zoom < MinZoom || zoom > MaxZoom {
		return model.TilePreloadReport{}, fmt.Errorf("%w: zoom %d", ErrInvalidTile, zoom)
	}
	if radius < 0 || radius > MaxRadius {
		return model.TilePreloadReport{}, fmt.Errorf("%w: radius %d", ErrInvalidTile, radius)
	}
	if len(c.cfg.Sources) == 0 {
		return model.TilePreloadReport{}, ErrNoTileSource
	}

	tiles := TileNeighborhood(center, zoom, radius)
	var loaded, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, t := range tiles {
		source := c.cfg.Sources[i%len(c.cfg.Sources)]
		g.Go(func() error {
			_, err := c.GetTile(gctx, TileRequest{Z: t.Z, X: t.X, Y: t.Y, Source: source})
			if err != nil {
				failed.Add(1)
				log.Debug().Err(err).Int("z", t.Z).Int("x", t.X).Int("y", t.Y).Msg("Tile preload failed")
				return nil
			}
			loaded.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report := model.TilePreloadReport{
		Requested: len(tiles),
		Loaded:    int(loaded.Load()),
		Failed:    int(failed.Load()),
	}
	log.Debug().
		Int("zoom", zoom).
		Int("requested", report.Requested).
		Int("loaded", report.Loaded).
		Msg("Tile neighborhood preloaded")
	return report, nil
}

// CleanupExpiredTiles removes expired entries from the store.
func (c *TileCache) CleanupExpiredTiles(ctx context.Context) (model.CleanupCount, error) {
	return c.store.CleanupExpired(ctx)
}

// ClearMemoryCache revokes every tile handle. The store is untouched.
func (c *TileCache) ClearMemoryCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, handle := range c.urls {
		c.handles.Revoke(handle)
	}
	c.urls = make(map[string]string)
}

// MemoryHandles returns the number of live tile handles.
func (c *TileCache) MemoryHandles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.urls)
}

// ClearTileCache deletes every tile entry and revokes tile handles. Other entry types survive.
func (c *TileCache) ClearTileCache(ctx context.Context) (model.CleanupCount, error) {
	c.ClearMemoryCache()

	count, err := c.store.DeleteByType(ctx, model.TypeTile)
	if err != nil {
		return count, fmt.Errorf("tile cache: clear: %w", err)
	}
	return count, nil
}

// Stats derives tile figures from store aggregates.
func (c *TileCache) Stats(ctx context.Context) (model.TileCacheStats, error) {
	stats, err := c.store.Stats(ctx)
	if err != nil {
		return model.TileCacheStats{}, fmt.Errorf("tile cache: stats: %w", err)
	}
	result := model.TileCacheStats{
		TotalTiles: stats.ItemCount,
		TotalSize:  stats.TotalSize,
	}
	if stats.ItemCount > 0 {
		result.AverageTileSize = stats.TotalSize / int64(stats.ItemCount)
	}
	return result, nil
}
