package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/guttosm/offline-cache/internal/domain/model"
	"github.com/guttosm/offline-cache/internal/handles"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const imagePreloadConcurrency = 4

// ImageKey returns the store key of url transcoded with opts.
func ImageKey(url string, opts ImageOptions) string {
	return "img:" + hashString(url) + ":" + hashString(opts.String())
}

func hashString(s string) string {
	return strconv.FormatUint(xxhash.Sum64String(s), 16)
}

// ImageCache loads images through the persistent store and hands them out as object URLs.
type ImageCache struct {
	store   Store
	fetcher Fetcher
	handles *handles.Registry

	group singleflight.Group

	mu   sync.RWMutex
	urls map[string]string
}

// NewImageCache creates an image cache.
func NewImageCache(store Store, fetcher Fetcher, registry *handles.Registry) *ImageCache {
	return &ImageCache{
		store:   store,
		fetcher: fetcher,
		handles: registry,
		urls:    make(map[string]string),
	}
}

// LoadImage returns an object URL for url transcoded with opts.
// Concurrent calls with the same url and options share one load.
func (c *ImageCache) LoadImage(ctx context.Context, url string, opts ImageOptions) (string, error) {
	opts = opts.Normalize()
	key := ImageKey(url, opts)

	v, err, _ := c.group.Do(key, func() (any, error) {
		if handle, ok := c.handle(key); ok {
			return handle, nil
		}
		return c.load(context.WithoutCancel(ctx), key, url, opts)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *ImageCache) handle(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	handle, ok := c.urls[key]
	return handle, ok
}

func (c *ImageCache) load(ctx context.Context, key, url string, opts ImageOptions) (string, error) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("Image cache read failed, loading from network")
	}
	if data != nil {
		return c.register(key, data), nil
	}

	resp, err := c.fetcher.Get(ctx, url)
	if err != nil {
		return "", fmt.Errorf("image cache: load %s: %w", url, err)
	}

	data = Transcode(resp.Body, opts)
	if err := c.store.Set(ctx, key, data, model.TypeImage); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("Image cache write failed")
	}
	return c.register(key, data), nil
}

func (c *ImageCache) register(key string, data []byte) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if handle, ok := c.urls[key]; ok {
		return handle
	}
	handle := c.handles.Create(data)
	c.urls[key] = handle
	return handle
}

// PreloadImages loads every url in parallel. Failures are logged and counted, never returned.
func (c *ImageCache) PreloadImages(ctx context.Context, urls []string, opts ImageOptions) model.BatchReport {
	report := model.BatchReport{Requested: len(urls)}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(imagePreloadConcurrency)
	for _, url := range urls {
		g.Go(func() error {
			_, err := c.LoadImage(ctx, url, opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				log.Warn().Err(err).Str("url", url).Msg("Image preload failed")
				return nil
			}
			report.Loaded++
			return nil
		})
	}
	_ = g.Wait()
	return report
}

// ClearMemoryCache revokes every handle this cache created. The store is untouched.
func (c *ImageCache) ClearMemoryCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, handle := range c.urls {
		c.handles.Revoke(handle)
	}
	c.urls = make(map[string]string)
}

// Stats reports live handles and store aggregates.
func (c *ImageCache) Stats(ctx context.Context) (model.ImageCacheStats, error) {
	c.mu.RLock()
	n := len(c.urls)
	c.mu.RUnlock()

	stats, err := c.store.Stats(ctx)
	if err != nil {
		return model.ImageCacheStats{}, fmt.Errorf("image cache: stats: %w", err)
	}
	return model.ImageCacheStats{MemoryHandles: n, Store: stats}, nil
}
