// Package service holds the page-side cache services: images, map tiles, cleanup and preload.
// Every service depends on the same persistent store through the Store interface.
package service

import (
	"context"
	"time"

	"github.com/guttosm/offline-cache/internal/domain/model"
	"github.com/guttosm/offline-cache/internal/fetch"
)

// Store is the persistent store surface the services use.
// Both store.Store and store.Disabled implement it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, entryType string) error
	Size(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (model.StoreStats, error)
	CleanupExpired(ctx context.Context) (model.CleanupCount, error)
	CleanupOlderThan(ctx context.Context, age time.Duration) (model.CleanupCount, error)
	DeleteByType(ctx context.Context, entryType string) (model.CleanupCount, error)
	Shrink(ctx context.Context, target int64) (model.CleanupCount, error)
	Clear(ctx context.Context) error
}

// Fetcher retrieves upstream resources. fetch.Client implements it.
type Fetcher interface {
	Get(ctx context.Context, url string) (*fetch.Response, error)
}

// Connectivity reports whether the upstream network is reachable.
type Connectivity interface {
	Online(ctx context.Context) bool
}

// AlwaysOnline is a Connectivity that never reports offline.
type AlwaysOnline struct{}

// Online always returns true.
func (AlwaysOnline) Online(context.Context) bool { return true }
