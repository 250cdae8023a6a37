// Package store implements the persistent key/value blob store shared by every cache in the gateway.
//
// The store enforces a byte budget with least-recently-inserted eviction and an age limit with
// lazy expiry. Storage itself is delegated to a repository backend.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/guttosm/offline-cache/internal/domain/model"
	"github.com/guttosm/offline-cache/internal/metrics"
	"github.com/guttosm/offline-cache/internal/repository"
	"github.com/rs/zerolog/log"
)

var (
	// ErrEntryTooLarge is returned by Set when a single payload exceeds the whole budget.
	ErrEntryTooLarge = errors.New("store: entry larger than max size")
	// ErrNotFound is returned by callers that need a hit, never by Get.
	ErrNotFound = errors.New("store: entry not found")
)

// Eviction reasons reported to metrics.
const (
	reasonBudget  = "budget"
	reasonExpired = "expired"
	reasonShrink  = "shrink"
)

// Config holds the store limits.
type Config struct {
	// MaxSize is the byte budget. Zero disables budget enforcement.
	MaxSize int64
	// MaxAge is the age after which an entry is logically absent. Zero disables expiry.
	MaxAge time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the time source used for timestamps and expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store is the persistent cache store.
type Store struct {
	repo repository.BlobRepositoryInterface
	cfg  Config
	now  func() time.Time

	initMu sync.Mutex
	ready  bool

	// writeMu serializes check-evict-insert so the budget holds after every Set.
	writeMu sync.Mutex
}

// New creates a store over repo. Call Init, or let the first operation do it.
func New(repo repository.BlobRepositoryInterface, cfg Config, opts ...Option) *Store {
	s := &Store{
		repo: repo,
		cfg:  cfg,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	metrics.UpdateStoreMetrics(0, cfg.MaxSize)
	return s
}

// Config returns the store limits.
func (s *Store) Config() Config {
	return s.cfg
}

// Init opens the backend. Safe to call concurrently and repeatedly; a failed open is retried on the next call.
func (s *Store) Init(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.ready {
		return nil
	}
	if err := s.repo.Open(ctx); err != nil {
		return fmt.Errorf("store: init: %w", err)
	}
	s.ready = true
	return nil
}

func (s *Store) ensureInit(ctx context.Context) error {
	s.initMu.Lock()
	ready := s.ready
	s.initMu.Unlock()
	if ready {
		return nil
	}
	return s.Init(ctx)
}

// Ping checks the backend.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.ensureInit(ctx); err != nil {
		return err
	}
	return s.repo.Ping(ctx)
}

// Close releases the backend.
func (s *Store) Close(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	s.ready = false
	return s.repo.Close(ctx)
}

func (s *Store) expired(meta model.EntryMeta) bool {
	return s.cfg.MaxAge > 0 && meta.Age(s.now()) > s.cfg.MaxAge
}

// Lookup returns the live entry for key, or nil when absent or expired. Expired entries are deleted.
func (s *Store) Lookup(ctx context.Context, key string) (*model.CacheEntry, error) {
	if err := s.ensureInit(ctx); err != nil {
		return nil, err
	}

	entry, err := s.repo.Get(ctx, key)
	if err != nil {
		metrics.RecordStoreOperation("get", "error")
		return nil, fmt.Errorf("store: get %q: %w", key, err)
	}
	if entry == nil {
		metrics.RecordStoreOperation("get", "miss")
		return nil, nil
	}

	if s.expired(entry.EntryMeta) {
		metrics.RecordStoreOperation("get", "expired")
		if _, err := s.repo.Delete(ctx, key); err != nil {
			return nil, fmt.Errorf("store: delete expired %q: %w", key, err)
		}
		metrics.RecordEvictions(reasonExpired, 1)
		return nil, nil
	}

	metrics.RecordStoreOperation("get", "hit")
	return entry, nil
}

// Get returns the payload for key, or nil when absent or expired.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := s.Lookup(ctx, key)
	if err != nil || entry == nil {
		return nil, err
	}
	return entry.Data, nil
}

// Has reports whether Get would return a payload. Like Get, it deletes expired entries.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	entry, err := s.Lookup(ctx, key)
	return entry != nil, err
}

// Set stores data under key, evicting the oldest entries first when the budget would be exceeded.
func (s *Store) Set(ctx context.Context, key string, data []byte, entryType string) error {
	if err := s.ensureInit(ctx); err != nil {
		return err
	}

	incoming := int64(len(data))
	if s.cfg.MaxSize > 0 && incoming > s.cfg.MaxSize {
		metrics.RecordStoreOperation("set", "too_large")
		return fmt.Errorf("%w: %q is %d bytes, budget %d", ErrEntryTooLarge, key, incoming, s.cfg.MaxSize)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	total, err := s.cleanupIfNeeded(ctx, key, incoming)
	if err != nil {
		metrics.RecordStoreOperation("set", "error")
		return err
	}

	if err := s.repo.Put(ctx, model.NewCacheEntry(key, data, entryType, s.now())); err != nil {
		metrics.RecordStoreOperation("set", "error")
		return fmt.Errorf("store: set %q: %w", key, err)
	}

	metrics.RecordStoreOperation("set", "ok")
	metrics.UpdateStoreMetrics(total+incoming, s.cfg.MaxSize)
	return nil
}

// cleanupIfNeeded evicts oldest entries until incoming bytes fit under the budget.
// It returns the resulting total size, excluding any previous version of key.
func (s *Store) cleanupIfNeeded(ctx context.Context, key string, incoming int64) (int64, error) {
	metas, err := s.repo.List(ctx, repository.ListFilter{})
	if err != nil {
		return 0, fmt.Errorf("store: list for eviction: %w", err)
	}

	var current, existing int64
	for _, m := range metas {
		current += m.Size
		if m.Key == key {
			existing = m.Size
		}
	}
	total := current - existing

	if s.cfg.MaxSize <= 0 {
		return total, nil
	}
	overflow := total + incoming - s.cfg.MaxSize
	if overflow <= 0 {
		return total, nil
	}

	var (
		victims []string
		freed   int64
	)
	for _, m := range metas {
		if freed >= overflow {
			break
		}
		// the entry being replaced is already accounted for
		if m.Key == key {
			continue
		}
		victims = append(victims, m.Key)
		freed += m.Size
	}

	count, err := s.repo.Delete(ctx, victims...)
	if err != nil {
		return 0, fmt.Errorf("store: evict: %w", err)
	}
	metrics.RecordEvictions(reasonBudget, count.Items)
	log.Debug().
		Str("key", key).
		Int("evicted", count.Items).
		Int64("freed", count.Bytes).
		Int64("overflow", overflow).
		Msg("Evicted entries to fit budget")

	return total - count.Bytes, nil
}

// Delete removes key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.ensureInit(ctx); err != nil {
		return err
	}
	if _, err := s.repo.Delete(ctx, key); err != nil {
		metrics.RecordStoreOperation("delete", "error")
		return fmt.Errorf("store: delete %q: %w", key, err)
	}
	metrics.RecordStoreOperation("delete", "ok")
	return nil
}

// Size returns the sum of all entry sizes, expired ones included.
func (s *Store) Size(ctx context.Context) (int64, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return 0, err
	}
	return stats.TotalSize, nil
}

// Stats returns aggregate figures. Every field is zero when the store is empty.
func (s *Store) Stats(ctx context.Context) (model.StoreStats, error) {
	var stats model.StoreStats
	if err := s.ensureInit(ctx); err != nil {
		return stats, err
	}

	metas, err := s.repo.List(ctx, repository.ListFilter{})
	if err != nil {
		return stats, fmt.Errorf("store: stats: %w", err)
	}

	for i, m := range metas {
		stats.TotalSize += m.Size
		if i == 0 || m.Timestamp < stats.OldestItem {
			stats.OldestItem = m.Timestamp
		}
		if m.Timestamp > stats.NewestItem {
			stats.NewestItem = m.Timestamp
		}
	}
	stats.ItemCount = len(metas)

	metrics.UpdateStoreMetrics(stats.TotalSize, s.cfg.MaxSize)
	return stats, nil
}

// CleanupExpired deletes every entry older than MaxAge in one pass.
func (s *Store) CleanupExpired(ctx context.Context) (model.CleanupCount, error) {
	return s.CleanupOlderThan(ctx, s.cfg.MaxAge)
}

// CleanupOlderThan deletes every entry older than age in one pass. A non-positive age deletes
// nothing.
func (s *Store) CleanupOlderThan(ctx context.Context, age time.Duration) (model.CleanupCount, error) {
	if age <= 0 {
		return model.CleanupCount{}, nil
	}
	now := s.now()
	return s.deleteWhere(ctx, repository.ListFilter{}, reasonExpired, func(m model.EntryMeta) bool {
		return m.Age(now) > age
	})
}

// DeleteByType deletes every entry tagged with entryType.
func (s *Store) DeleteByType(ctx context.Context, entryType string) (model.CleanupCount, error) {
	return s.deleteWhere(ctx, repository.ListFilter{Type: entryType}, "", nil)
}

// DeletePrefix deletes every entry whose key starts with prefix.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) (model.CleanupCount, error) {
	return s.deleteWhere(ctx, repository.ListFilter{Prefix: prefix}, "", nil)
}

func (s *Store) deleteWhere(ctx context.Context, filter repository.ListFilter, reason string, match func(model.EntryMeta) bool) (model.CleanupCount, error) {
	if err := s.ensureInit(ctx); err != nil {
		return model.CleanupCount{}, err
	}

	metas, err := s.repo.List(ctx, filter)
	if err != nil {
		return model.CleanupCount{}, fmt.Errorf("store: list: %w", err)
	}

	keys := make([]string, 0, len(metas))
	for _, m := range metas {
		if match == nil || match(m) {
			keys = append(keys, m.Key)
		}
	}

	count, err := s.repo.Delete(ctx, keys...)
	if err != nil {
		return model.CleanupCount{}, fmt.Errorf("store: delete: %w", err)
	}
	if reason != "" {
		metrics.RecordEvictions(reason, count.Items)
	}
	return count, nil
}

// Shrink evicts oldest entries until the total size is at or below target.
func (s *Store) Shrink(ctx context.Context, target int64) (model.CleanupCount, error) {
	if err := s.ensureInit(ctx); err != nil {
		return model.CleanupCount{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	metas, err := s.repo.List(ctx, repository.ListFilter{})
	if err != nil {
		return model.CleanupCount{}, fmt.Errorf("store: list for shrink: %w", err)
	}

	var total int64
	for _, m := range metas {
		total += m.Size
	}

	var victims []string
	for _, m := range metas {
		if total <= target {
			break
		}
		victims = append(victims, m.Key)
		total -= m.Size
	}

	count, err := s.repo.Delete(ctx, victims...)
	if err != nil {
		return model.CleanupCount{}, fmt.Errorf("store: shrink: %w", err)
	}
	metrics.RecordEvictions(reasonShrink, count.Items)
	return count, nil
}

// Scan calls fn for each entry whose key starts with prefix, oldest first, until fn returns false.
// Expired entries are included; Scan never deletes.
func (s *Store) Scan(ctx context.Context, prefix string, fn func(model.EntryMeta) bool) error {
	if err := s.ensureInit(ctx); err != nil {
		return err
	}

	metas, err := s.repo.List(ctx, repository.ListFilter{Prefix: prefix})
	if err != nil {
		return fmt.Errorf("store: scan %q: %w", prefix, err)
	}
	for _, m := range metas {
		if !strings.HasPrefix(m.Key, prefix) {
			continue
		}
		if !fn(m) {
			return nil
		}
	}
	return nil
}

// Clear deletes every entry.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.ensureInit(ctx); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.repo.Clear(ctx); err != nil {
		metrics.RecordStoreOperation("clear", "error")
		return fmt.Errorf("store: clear: %w", err)
	}
	metrics.RecordStoreOperation("clear", "ok")
	metrics.UpdateStoreMetrics(0, s.cfg.MaxSize)
	return nil
}
