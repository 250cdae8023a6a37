package store

import (
	"context"
	"time"

	"github.com/guttosm/offline-cache/internal/domain/model"
)

// Disabled satisfies the Store method set while storing nothing. It backs DISABLE_CACHE:
// every read misses and every write is dropped.
type Disabled struct{}

// Init does nothing.
func (Disabled) Init(context.Context) error { return nil }

// Ping always succeeds.
func (Disabled) Ping(context.Context) error { return nil }

// Close does nothing.
func (Disabled) Close(context.Context) error { return nil }

// Lookup always misses.
func (Disabled) Lookup(context.Context, string) (*model.CacheEntry, error) { return nil, nil }

// Get always misses.
func (Disabled) Get(context.Context, string) ([]byte, error) { return nil, nil }

// Has always reports false.
func (Disabled) Has(context.Context, string) (bool, error) { return false, nil }

// Set drops the entry.
func (Disabled) Set(context.Context, string, []byte, string) error { return nil }

// Delete does nothing.
func (Disabled) Delete(context.Context, string) error { return nil }

// Clear does nothing.
func (Disabled) Clear(context.Context) error { return nil }

// Size is always zero.
func (Disabled) Size(context.Context) (int64, error) { return 0, nil }

// Stats reports an empty store.
func (Disabled) Stats(context.Context) (model.StoreStats, error) { return model.StoreStats{}, nil }

// CleanupExpired removes nothing.
func (Disabled) CleanupExpired(context.Context) (model.CleanupCount, error) {
	return model.CleanupCount{}, nil
}

// CleanupOlderThan removes nothing.
func (Disabled) CleanupOlderThan(context.Context, time.Duration) (model.CleanupCount, error) {
	return model.CleanupCount{}, nil
}

// DeleteByType removes nothing.
func (Disabled) DeleteByType(context.Context, string) (model.CleanupCount, error) {
	return model.CleanupCount{}, nil
}

// DeletePrefix removes nothing.
func (Disabled) DeletePrefix(context.Context, string) (model.CleanupCount, error) {
	return model.CleanupCount{}, nil
}

// Shrink removes nothing.
func (Disabled) Shrink(context.Context, int64) (model.CleanupCount, error) {
	return model.CleanupCount{}, nil
}

// Scan visits nothing.
func (Disabled) Scan(context.Context, string, func(model.EntryMeta) bool) error { return nil }
