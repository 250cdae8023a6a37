package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guttosm/offline-cache/internal/domain/model"
	"github.com/guttosm/offline-cache/internal/events"
	"github.com/guttosm/offline-cache/internal/metrics"
	"github.com/guttosm/offline-cache/internal/strategy"
	"github.com/rs/zerolog/log"
)

// Zoom range preloaded around the configured zoom.
const (
	PreloadMinZoom = 5
	PreloadMaxZoom = 19
)

// Default time boxes.
const (
	DefaultImagesTimeout = 5 * time.Second
	DefaultTilesTimeout  = 10 * time.Second
	DefaultFontTimeout   = 3 * time.Second
)

var errTimedOut = errors.New("timed out")

// PreloadConfig lists what PreloadAll warms up.
type PreloadConfig struct {
	CriticalImages []string   `json:"critical_images"`
	Center         [2]float64 `json:"center"`
	Zoom           int        `json:"zoom"`
	Radius         int        `json:"radius"`
	Fonts          []string   `json:"fonts"`
	Icons          []string   `json:"icons"`

	ImagesTimeout time.Duration `json:"-"`
	TilesTimeout  time.Duration `json:"-"`
	FontTimeout   time.Duration `json:"-"`
}

// Valid reports whether the tile neighborhood is on the grid and bounded.
func (c PreloadConfig) Valid() bool {
	return c.Zoom >= MinZoom && c.Zoom <= MaxZoom && c.Radius >= 0 && c.Radius <= MaxRadius
}

func (c PreloadConfig) withDefaults() PreloadConfig {
	if c.ImagesTimeout <= 0 {
		c.ImagesTimeout = DefaultImagesTimeout
	}
	if c.TilesTimeout <= 0 {
		c.TilesTimeout = DefaultTilesTimeout
	}
	if c.FontTimeout <= 0 {
		c.FontTimeout = DefaultFontTimeout
	}
	return c
}

// PreloadZooms returns zoom-1, zoom and zoom+1 clipped to the preload range, without duplicates.
func PreloadZooms(zoom int) []int {
	seen := make(map[int]bool, 3)
	zooms := make([]int, 0, 3)
	for _, z := range []int{zoom - 1, zoom, zoom + 1} {
		z = clamp(z, PreloadMinZoom, PreloadMaxZoom)
		if !seen[z] {
			seen[z] = true
			zooms = append(zooms, z)
		}
	}
	sort.Ints(zooms)
	return zooms
}

// PreloadDeps are the collaborators of a PreloadService.
type PreloadDeps struct {
	Images       *ImageCache
	Tiles        *TileCache
	Engine       *strategy.Engine
	Fetcher      Fetcher
	Fonts        *FontLibrary
	Connectivity Connectivity
	Bus          events.Publisher
}

// PreloadService warms the cache with critical assets.
type PreloadService struct {
	deps PreloadDeps

	preloading atomic.Bool
	progress   atomic.Int32

	mu  sync.RWMutex
	cfg PreloadConfig
}

// NewPreloadService creates a preload service.
func NewPreloadService(cfg PreloadConfig, deps PreloadDeps) *PreloadService {
	if deps.Connectivity == nil {
		deps.Connectivity = AlwaysOnline{}
	}
	return &PreloadService{cfg: cfg, deps: deps}
}

// Config returns the current configuration.
func (s *PreloadService) Config() PreloadConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// UpdateConfig replaces the configuration used by the next PreloadAll.
func (s *PreloadService) UpdateConfig(cfg PreloadConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// Progress returns the last published progress, 0 to 100.
func (s *PreloadService) Progress() int {
	return int(s.progress.Load())
}

// Running reports whether a preload is in progress.
func (s *PreloadService) Running() bool {
	return s.preloading.Load()
}

func (s *PreloadService) setProgress(p int) {
	s.progress.Store(int32(p))
	if s.deps.Bus != nil {
		s.deps.Bus.Publish(events.PreloadProgress, events.Progress{Progress: p})
	}
}

type preloadTask struct {
	name    string
	timeout time.Duration
	run     func(ctx context.Context) error
}

// PreloadAll runs the image, tile, font and icon tasks concurrently. Each task is time-boxed;
// a task that loses the race keeps running in the background. Progress advances by 25 as each
// task settles. When offline, progress jumps to 100 and nothing is loaded. A call made while
// another preload runs returns a skipped report.
func (s *PreloadService) PreloadAll(ctx context.Context) model.PreloadReport {
	if !s.preloading.CompareAndSwap(false, true) {
		log.Debug().Msg("Preload already running, skipping")
		return model.PreloadReport{Skipped: true, Progress: s.Progress()}
	}
	defer s.preloading.Store(false)

	start := time.Now()
	if !s.deps.Connectivity.Online(ctx) {
		s.setProgress(100)
		log.Info().Msg("Offline, skipping preload")
		return model.PreloadReport{Offline: true, Progress: 100, Duration: time.Since(start)}
	}

	cfg := s.Config().withDefaults()
	s.setProgress(0)

	tasks := []preloadTask{
		{name: model.PreloadTaskImages, timeout: cfg.ImagesTimeout, run: func(ctx context.Context) error {
			return s.preloadImages(ctx, cfg.CriticalImages)
		}},
		{name: model.PreloadTaskTiles, timeout: cfg.TilesTimeout, run: func(ctx context.Context) error {
			return s.preloadTiles(ctx, cfg)
		}},
		{name: model.PreloadTaskFonts, run: func(ctx context.Context) error {
			return s.preloadFonts(ctx, cfg.Fonts, cfg.FontTimeout)
		}},
		{name: model.PreloadTaskIcons, run: func(ctx context.Context) error {
			return s.preloadImages(ctx, cfg.Icons)
		}},
	}

	results := make([]model.PreloadTaskResult, len(tasks))
	step := 100 / len(tasks)
	var (
		mu      sync.Mutex
		settled int
		wg      sync.WaitGroup
	)
	for i, t := range tasks {
		wg.Go(func() {
			results[i] = runTask(ctx, t)

			mu.Lock()
			defer mu.Unlock()
			settled++
			s.setProgress(settled * step)
		})
	}
	wg.Wait()

	report := model.PreloadReport{
		Progress: s.Progress(),
		Tasks:    results,
		Duration: time.Since(start),
	}
	log.Info().Dur("duration", report.Duration).Msg("Preload completed")
	return report
}

// runTask races t against its time box. The work continues when the box wins.
func runTask(ctx context.Context, t preloadTask) model.PreloadTaskResult {
	start := time.Now()
	err := raceTimeout(ctx, t.timeout, t.run)

	result := model.PreloadTaskResult{Task: t.name, Duration: time.Since(start)}
	switch {
	case errors.Is(err, errTimedOut):
		result.TimedOut = true
		metrics.RecordPreloadTask(t.name, "timeout")
		log.Warn().Str("task", t.name).Dur("timeout", t.timeout).Msg("Preload task timed out")
	case err != nil:
		result.Error = err.Error()
		metrics.RecordPreloadTask(t.name, "error")
		log.Warn().Err(err).Str("task", t.name).Msg("Preload task failed")
	default:
		metrics.RecordPreloadTask(t.name, "ok")
	}
	return result
}

// raceTimeout runs fn detached from ctx's cancellation and waits for it, for timeout or for ctx,
// whichever comes first. A zero timeout waits for fn or ctx only.
func raceTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn(context.WithoutCancel(ctx))
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case err := <-done:
		return err
	case <-expired:
		return errTimedOut
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *PreloadService) preloadImages(ctx context.Context, urls []string) error {
	if len(urls) == 0 || s.deps.Images == nil {
		return nil
	}
	report := s.deps.Images.PreloadImages(ctx, urls, ImageOptions{})
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d images failed", report.Failed, report.Requested)
	}
	return nil
}

func (s *PreloadService) preloadTiles(ctx context.Context, cfg PreloadConfig) error {
	if s.deps.Tiles == nil {
		return nil
	}
	var errs []error
	for _, zoom := range PreloadZooms(cfg.Zoom) {
		if _, err := s.deps.Tiles.PreloadTiles(ctx, cfg.Center, zoom, cfg.Radius); err != nil {
			errs = append(errs, fmt.Errorf("zoom %d: %w", zoom, err))
		}
	}
	return errors.Join(errs...)
}

func (s *PreloadService) preloadFonts(ctx context.Context, urls []string, timeout time.Duration) error {
	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	for _, url := range urls {
		wg.Go(func() {
			err := raceTimeout(ctx, timeout, func(ctx context.Context) error {
				return s.LoadFont(ctx, url)
			})
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", url, err))
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}

// FontKey returns the store key of a font.
func FontKey(url string) string {
	return "font:" + hashString(url)
}

// LoadFont fetches url cache-first and registers it with the font library.
func (s *PreloadService) LoadFont(ctx context.Context, url string) error {
	if s.deps.Engine == nil || s.deps.Fetcher == nil {
		return errors.New("font loading not configured")
	}

	data, err := strategy.Run(ctx, s.deps.Engine, strategy.CacheFirst, strategy.Request[[]byte]{
		Key:    FontKey(url),
		Type:   model.TypeFont,
		MaxAge: strategy.CriticalMaxAge,
		Fetch: func(ctx context.Context) ([]byte, error) {
			resp, err := s.deps.Fetcher.Get(ctx, url)
			if err != nil {
				return nil, err
			}
			return resp.Body, nil
		},
		Encode: identity,
		Decode: identity,
	})
	if err != nil {
		return fmt.Errorf("load font: %w", err)
	}

	if s.deps.Fonts != nil {
		f := s.deps.Fonts.Register(url, data)
		log.Debug().Str("url", url).Str("family", f.Family).Msg("Font registered")
	}
	return nil
}

func identity(b []byte) ([]byte, error) {
	return b, nil
}
