// Package repository provides storage backends for cache entries.
package repository

import (
	"context"

	"github.com/guttosm/offline-cache/internal/domain/model"
)

// ListFilter narrows a metadata listing. Zero values match everything.
type ListFilter struct {
	Prefix string
	Type   string
}

// Matches reports whether meta satisfies the filter.
func (f ListFilter) Matches(meta model.EntryMeta) bool {
	if f.Prefix != "" && (len(meta.Key) < len(f.Prefix) || meta.Key[:len(f.Prefix)] != f.Prefix) {
		return false
	}
	if f.Type != "" && meta.Type != f.Type {
		return false
	}
	return true
}

// BlobRepositoryInterface defines the storage backend operations used by the store.
// Implementations only provide per-call atomicity; budget and expiry policy live in the store.
type BlobRepositoryInterface interface {
	// Open creates the database and its indexes. Safe to call more than once.
	Open(ctx context.Context) error
	// Get returns nil, nil when the key is absent.
	Get(ctx context.Context, key string) (*model.CacheEntry, error)
	// Put upserts the entry.
	Put(ctx context.Context, entry *model.CacheEntry) error
	// Delete removes the given keys, reporting what actually existed.
	Delete(ctx context.Context, keys ...string) (model.CleanupCount, error)
	// List returns metadata ordered by ascending timestamp.
	List(ctx context.Context, filter ListFilter) ([]model.EntryMeta, error)
	// Clear removes every entry.
	Clear(ctx context.Context) error
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases the backend.
	Close(ctx context.Context) error
}
