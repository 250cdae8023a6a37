// Package app provides store initialization and setup.
package app

import (
	"context"
	"fmt"

	"github.com/guttosm/offline-cache/config"
	"github.com/guttosm/offline-cache/internal/circuitbreaker"
	"github.com/guttosm/offline-cache/internal/intermediary"
	"github.com/guttosm/offline-cache/internal/repository"
	"github.com/guttosm/offline-cache/internal/service"
	"github.com/guttosm/offline-cache/internal/store"
	"github.com/rs/zerolog/log"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendBolt  = "bolt"
	BackendMongo = "mongo"
)

// cacheStore is the store surface shared by the services, the intermediary and the admin API.
// *store.Store and store.Disabled implement it.
type cacheStore interface {
	service.Store
	intermediary.Store
	Init(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// StoreComponents holds the persistent store and what it was built on.
type StoreComponents struct {
	Store cacheStore
	// Breaker guards the mongo backend; nil for the other backends.
	Breaker *circuitbreaker.CircuitBreaker
	mongo   *repository.MongoDB
}

// Close releases the store and its backend connection.
func (c *StoreComponents) Close(ctx context.Context) error {
	err := c.Store.Close(ctx)
	if c.mongo != nil {
		if mErr := c.mongo.Close(ctx); mErr != nil && err == nil {
			err = mErr
		}
	}
	return err
}

// InitializeStore opens the configured store backend. With DISABLE_CACHE set the store keeps nothing.
func InitializeStore(ctx context.Context, cfg config.Config) (*StoreComponents, error) {
	if cfg.Store.Disabled {
		log.Warn().Msg("Cache disabled, every read misses and writes are dropped")
		return &StoreComponents{Store: store.Disabled{}}, nil
	}

	components := &StoreComponents{}
	var repo repository.BlobRepositoryInterface

	switch cfg.Store.Backend {
	case BackendBolt, "":
		repo = repository.NewBoltRepository(repository.DefaultBoltConfig(cfg.Store.Path))
		log.Info().Str("path", cfg.Store.Path).Msg("Using bbolt store backend")

	case BackendMongo:
		mongoCfg := repository.DefaultMongoConfig()
		mongoCfg.Collection = cfg.Database.Collection
		db, err := repository.NewMongoDBWithConfig(cfg.Database.URI, cfg.Database.DatabaseName, mongoCfg)
		if err != nil {
			return nil, fmt.Errorf("connect to mongodb: %w", err)
		}
		if err := db.EnsureIndexes(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to create cache entry indexes (may already exist)")
		}

		components.Breaker = circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.Database.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.Database.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.Database.CircuitBreakerTimeout,
			Name:             "mongodb-cache-entries",
		})
		components.mongo = db
		repo = repository.NewRepositoryWithCircuitBreaker(repository.NewMongoRepository(db), components.Breaker)
		log.Info().Str("database", cfg.Database.DatabaseName).Msg("Connected to MongoDB store backend")

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	st := store.New(repo, store.Config{MaxSize: cfg.Store.MaxSize, MaxAge: cfg.Store.MaxAge})
	components.Store = st
	if err := st.Init(ctx); err != nil {
		_ = components.Close(ctx)
		return nil, err
	}
	return components, nil
}
