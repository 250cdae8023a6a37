package repository

import (
	"context"
	"errors"

	"github.com/guttosm/offline-cache/internal/circuitbreaker"
	"github.com/guttosm/offline-cache/internal/domain/model"
)

// RepositoryWithCircuitBreaker wraps a BlobRepositoryInterface with circuit breaker protection.
// Reads degrade to misses while the circuit is open so the store keeps serving the network path.
type RepositoryWithCircuitBreaker struct {
	repo           BlobRepositoryInterface
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// NewRepositoryWithCircuitBreaker creates a new repository wrapper with circuit breaker.
func NewRepositoryWithCircuitBreaker(repo BlobRepositoryInterface, cb *circuitbreaker.CircuitBreaker) *RepositoryWithCircuitBreaker {
	return &RepositoryWithCircuitBreaker{
		repo:           repo,
		circuitBreaker: cb,
	}
}

// Open bypasses the breaker; a failed open is reported to the caller directly.
func (r *RepositoryWithCircuitBreaker) Open(ctx context.Context) error {
	return r.repo.Open(ctx)
}

// Get returns the entry with circuit breaker protection.
func (r *RepositoryWithCircuitBreaker) Get(ctx context.Context, key string) (*model.CacheEntry, error) {
	var result *model.CacheEntry
	err := r.circuitBreaker.Execute(ctx, func() error {
		var cbErr error
		result, cbErr = r.repo.Get(ctx, key)
		return cbErr
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		// Circuit is open - report a miss
		return nil, nil
	}
	return result, err
}

// Put stores the entry with circuit breaker protection.
func (r *RepositoryWithCircuitBreaker) Put(ctx context.Context, entry *model.CacheEntry) error {
	return r.circuitBreaker.Execute(ctx, func() error {
		return r.repo.Put(ctx, entry)
	})
}

// Delete removes keys with circuit breaker protection.
func (r *RepositoryWithCircuitBreaker) Delete(ctx context.Context, keys ...string) (model.CleanupCount, error) {
	var result model.CleanupCount
	err := r.circuitBreaker.Execute(ctx, func() error {
		var cbErr error
		result, cbErr = r.repo.Delete(ctx, keys...)
		return cbErr
	})
	return result, err
}

// List returns metadata with circuit breaker protection. An open circuit yields an empty listing.
func (r *RepositoryWithCircuitBreaker) List(ctx context.Context, filter ListFilter) ([]model.EntryMeta, error) {
	var result []model.EntryMeta
	err := r.circuitBreaker.Execute(ctx, func() error {
		var cbErr error
		result, cbErr = r.repo.List(ctx, filter)
		return cbErr
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return nil, nil
	}
	return result, err
}

// Clear removes everything with circuit breaker protection.
func (r *RepositoryWithCircuitBreaker) Clear(ctx context.Context) error {
	return r.circuitBreaker.Execute(ctx, func() error {
		return r.repo.Clear(ctx)
	})
}

// Ping checks the backend with circuit breaker protection.
func (r *RepositoryWithCircuitBreaker) Ping(ctx context.Context) error {
	return r.circuitBreaker.Execute(ctx, func() error {
		return r.repo.Ping(ctx)
	})
}

// Close closes the wrapped repository.
func (r *RepositoryWithCircuitBreaker) Close(ctx context.Context) error {
	return r.repo.Close(ctx)
}

// GetCircuitBreaker returns the underlying circuit breaker for monitoring.
func (r *RepositoryWithCircuitBreaker) GetCircuitBreaker() *circuitbreaker.CircuitBreaker {
	return r.circuitBreaker
}
