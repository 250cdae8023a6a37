package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guttosm/offline-cache/internal/domain/model"
	"github.com/guttosm/offline-cache/internal/events"
	"github.com/guttosm/offline-cache/internal/metrics"
	"github.com/rs/zerolog/log"
)

// shrinkTarget is the fraction of MaxSize a cleanup shrinks the store back to.
const shrinkTarget = 0.7

// CleanupConfig drives automatic cleanup. MaxSize is in bytes; Threshold is a fraction of it.
// MaxSize only places the shrink threshold; the store's own budget still bounds every write.
// MaxAge overrides the store's expiry age for cleanup passes when set.
type CleanupConfig struct {
	AutoCleanup bool
	Interval    time.Duration
	MaxSize     int64
	MaxAge      time.Duration
	Threshold   float64
}

// DefaultCleanupConfig returns the production cleanup settings.
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		AutoCleanup: true,
		Interval:    30 * time.Minute,
		MaxSize:     100 * 1024 * 1024,
		MaxAge:      7 * 24 * time.Hour,
		Threshold:   0.8,
	}
}

func (c CleanupConfig) limit() int64 {
	return int64(float64(c.MaxSize) * c.Threshold)
}

// CleanupService keeps the store inside its budget, on demand and on a timer.
type CleanupService struct {
	store  Store
	images *ImageCache
	tiles  *TileCache
	bus    events.Publisher

	cleaning atomic.Bool

	mu   sync.Mutex
	cfg  CleanupConfig
	stop chan struct{}
	done chan struct{}
}

// NewCleanupService creates a cleanup service. images, tiles and bus may be nil.
func NewCleanupService(cfg CleanupConfig, store Store, images *ImageCache, tiles *TileCache, bus events.Publisher) *CleanupService {
	return &CleanupService{
		cfg:    cfg,
		store:  store,
		images: images,
		tiles:  tiles,
		bus:    bus,
	}
}

// Config returns the current configuration.
func (s *CleanupService) Config() CleanupConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// UpdateConfig replaces the configuration and restarts a running timer with the new interval.
func (s *CleanupService) UpdateConfig(cfg CleanupConfig) {
	s.mu.Lock()
	s.cfg = cfg
	running := s.stop != nil
	s.mu.Unlock()

	if running {
		s.StopAutoCleanup()
		s.StartAutoCleanup()
	}
}

// StartAutoCleanup starts the periodic cleanup. Calling it while running does nothing.
func (s *CleanupService) StartAutoCleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = DefaultCleanupConfig().Interval
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(interval, s.stop, s.done)

	log.Info().Dur("interval", interval).Msg("Automatic cache cleanup started")
}

// StopAutoCleanup stops the periodic cleanup and waits for the loop to exit.
func (s *CleanupService) StopAutoCleanup() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	log.Info().Msg("Automatic cache cleanup stopped")
}

// Running reports whether the timer is active.
func (s *CleanupService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

func (s *CleanupService) loop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			if _, err := s.PerformCleanup(ctx); err != nil {
				log.Error().Err(err).Msg("Scheduled cache cleanup failed")
			}
			cancel()
		}
	}
}

// PerformCleanup removes expired entries, shrinks the store to 70% of MaxSize when usage is
// above the threshold and drops image and tile handles. A call made while another cleanup runs returns
// a zero result.
func (s *CleanupService) PerformCleanup(ctx context.Context) (model.CleanupResult, error) {
	if !s.cleaning.CompareAndSwap(false, true) {
		log.Debug().Msg("Cleanup already running, skipping")
		metrics.RecordCleanup("skipped", 0)
		return model.CleanupResult{}, nil
	}
	defer s.cleaning.Store(false)

	start := time.Now()
	cfg := s.Config()

	before, err := s.store.Stats(ctx)
	if err != nil {
		metrics.RecordCleanup("error", 0)
		return model.CleanupResult{}, fmt.Errorf("cleanup: stats: %w", err)
	}

	if _, err := s.expire(ctx, cfg.MaxAge); err != nil {
		metrics.RecordCleanup("error", 0)
		return model.CleanupResult{}, fmt.Errorf("cleanup: expired entries: %w", err)
	}
	if s.tiles != nil {
		if _, err := s.tiles.CleanupExpiredTiles(ctx); err != nil {
			metrics.RecordCleanup("error", 0)
			return model.CleanupResult{}, fmt.Errorf("cleanup: expired tiles: %w", err)
		}
	}

	size, err := s.store.Size(ctx)
	if err != nil {
		metrics.RecordCleanup("error", 0)
		return model.CleanupResult{}, fmt.Errorf("cleanup: size: %w", err)
	}
	if cfg.MaxSize > 0 && size > cfg.limit() {
		target := int64(float64(cfg.MaxSize) * shrinkTarget)
		if _, err := s.store.Shrink(ctx, target); err != nil {
			metrics.RecordCleanup("error", 0)
			return model.CleanupResult{}, fmt.Errorf("cleanup: shrink: %w", err)
		}
	}

	if s.images != nil {
		s.images.ClearMemoryCache()
	}
	if s.tiles != nil {
		s.tiles.ClearMemoryCache()
	}

	after, err := s.store.Stats(ctx)
	if err != nil {
		metrics.RecordCleanup("error", 0)
		return model.CleanupResult{}, fmt.Errorf("cleanup: stats: %w", err)
	}

	result := model.CleanupResult{
		CleanedItems: max(before.ItemCount-after.ItemCount, 0),
		FreedSpace:   max(before.TotalSize-after.TotalSize, 0),
		Duration:     time.Since(start),
		Before:       before,
		After:        after,
	}
	metrics.RecordCleanup("ok", result.FreedSpace)
	if s.bus != nil {
		s.bus.Publish(events.CacheCleaned, result)
	}

	log.Info().
		Int("cleaned_items", result.CleanedItems).
		Int64("freed_bytes", result.FreedSpace).
		Dur("duration", result.Duration).
		Msg("Cache cleanup completed")
	return result, nil
}

func (s *CleanupService) expire(ctx context.Context, age time.Duration) (model.CleanupCount, error) {
	if age > 0 {
		return s.store.CleanupOlderThan(ctx, age)
	}
	return s.store.CleanupExpired(ctx)
}

// ClearAllCache wipes the store and every in-memory handle.
func (s *CleanupService) ClearAllCache(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("cleanup: clear: %w", err)
	}
	if s.images != nil {
		s.images.ClearMemoryCache()
	}
	if s.tiles != nil {
		s.tiles.ClearMemoryCache()
	}
	log.Info().Msg("All cached data cleared")
	return nil
}

// NeedsCleanup reports whether usage is above MaxSize × Threshold.
func (s *CleanupService) NeedsCleanup(ctx context.Context) (bool, error) {
	size, err := s.store.Size(ctx)
	if err != nil {
		return false, fmt.Errorf("cleanup: size: %w", err)
	}
	return size > s.Config().limit(), nil
}
