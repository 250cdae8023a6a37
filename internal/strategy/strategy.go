// Package strategy resolves a keyed value through the cache and a producer according to a fixed
// set of caching strategies.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/guttosm/offline-cache/internal/domain/model"
	"github.com/guttosm/offline-cache/internal/metrics"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotCached is returned by CacheOnly on a miss.
	ErrNotCached = errors.New("strategy: not cached")
	// ErrUnknownStrategy is returned for a Strategy value outside the defined set.
	ErrUnknownStrategy = errors.New("strategy: unknown strategy")
)

// Strategy names one way of combining the cache with the producer.
type Strategy int

// The closed set of strategies. The zero value is invalid.
const (
	CacheFirst Strategy = iota + 1
	NetworkFirst
	CacheOnly
	NetworkOnly
	StaleWhileRevalidate
)

// String returns the conventional kebab-case name.
func (s Strategy) String() string {
	switch s {
	case CacheFirst:
		return "cache-first"
	case NetworkFirst:
		return "network-first"
	case CacheOnly:
		return "cache-only"
	case NetworkOnly:
		return "network-only"
	case StaleWhileRevalidate:
		return "stale-while-revalidate"
	default:
		return "unknown"
	}
}

func (s Strategy) valid() bool {
	return s >= CacheFirst && s <= StaleWhileRevalidate
}

// Parse maps a kebab-case name back to its Strategy.
func Parse(name string) (Strategy, error) {
	for _, s := range []Strategy{CacheFirst, NetworkFirst, CacheOnly, NetworkOnly, StaleWhileRevalidate} {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// Outcome tells the caller where a value came from.
type Outcome int

const (
	// OutcomeHit means the value was read from the cache.
	OutcomeHit Outcome = iota + 1
	// OutcomeNetwork means the producer supplied the value.
	OutcomeNetwork
	// OutcomeStale means a cached value was served while a refresh runs in the background.
	OutcomeStale
	// OutcomeFallback means the producer failed and the cache answered instead.
	OutcomeFallback
)

// String returns the outcome as used in the X-Cache header and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeHit:
		return "hit"
	case OutcomeNetwork:
		return "miss"
	case OutcomeStale:
		return "stale"
	case OutcomeFallback:
		return "fallback"
	default:
		return "none"
	}
}

// Cache is the store surface the engine needs.
type Cache interface {
	Lookup(ctx context.Context, key string) (*model.CacheEntry, error)
	Set(ctx context.Context, key string, data []byte, entryType string) error
}

// Request describes one resolution.
type Request[T any] struct {
	// Key is the store key.
	Key string
	// Type tags persisted entries.
	Type string
	// MaxAge makes older entries count as misses. Zero accepts any live entry.
	MaxAge time.Duration
	// Fetch produces a fresh value.
	Fetch func(ctx context.Context) (T, error)
	// Encode turns a fetched value into stored bytes. Nil disables persistence.
	Encode func(T) ([]byte, error)
	// Decode turns stored bytes back into a value. Nil disables cache reads.
	Decode func([]byte) (T, error)
	// Timeout bounds Fetch for NetworkFirst. Zero means the caller's deadline only.
	Timeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithCacheDisabled makes every strategy behave as NetworkOnly.
func WithCacheDisabled() Option {
	return func(e *Engine) {
		e.disabled = true
	}
}

// WithClock replaces the time source used for MaxAge checks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine binds strategies to a cache and a background runner.
type Engine struct {
	cache    Cache
	runner   *Runner
	disabled bool
	now      func() time.Time
}

// NewEngine creates an engine. runner receives stale-while-revalidate refreshes.
func NewEngine(cache Cache, runner *Runner, opts ...Option) *Engine {
	e := &Engine{
		cache:  cache,
		runner: runner,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CacheDisabled reports whether every strategy runs as NetworkOnly.
func (e *Engine) CacheDisabled() bool {
	return e.disabled
}

// Runner returns the engine's background runner.
func (e *Engine) Runner() *Runner {
	return e.runner
}

// Run resolves req with strategy s.
func Run[T any](ctx context.Context, e *Engine, s Strategy, req Request[T]) (T, error) {
	v, _, err := Resolve(ctx, e, s, req)
	return v, err
}

// Resolve is Run that also reports where the value came from.
func Resolve[T any](ctx context.Context, e *Engine, s Strategy, req Request[T]) (T, Outcome, error) {
	if e.disabled && s.valid() {
		s = NetworkOnly
	}

	var (
		v       T
		outcome Outcome
		err     error
	)
	switch s {
	case CacheFirst:
		v, outcome, err = cacheFirst(ctx, e, req)
	case NetworkFirst:
		v, outcome, err = networkFirst(ctx, e, req)
	case CacheOnly:
		v, outcome, err = cacheOnly(ctx, e, req)
	case NetworkOnly:
		v, outcome, err = networkOnly(ctx, req)
	case StaleWhileRevalidate:
		v, outcome, err = staleWhileRevalidate(ctx, e, req)
	default:
		var zero T
		return zero, 0, fmt.Errorf("%w: %d", ErrUnknownStrategy, int(s))
	}

	if err != nil {
		metrics.RecordStrategyOutcome(s.String(), "error")
	} else {
		metrics.RecordStrategyOutcome(s.String(), outcome.String())
	}
	return v, outcome, err
}

func cacheFirst[T any](ctx context.Context, e *Engine, req Request[T]) (T, Outcome, error) {
	if v, ok := read(ctx, e, req); ok {
		return v, OutcomeHit, nil
	}

	v, err := req.Fetch(ctx)
	if err != nil {
		return v, 0, err
	}
	persist(ctx, e, req, v)
	return v, OutcomeNetwork, nil
}

func networkFirst[T any](ctx context.Context, e *Engine, req Request[T]) (T, Outcome, error) {
	fetchCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	v, fetchErr := req.Fetch(fetchCtx)
	if fetchErr == nil {
		persist(ctx, e, req, v)
		return v, OutcomeNetwork, nil
	}

	if cached, ok := read(ctx, e, req); ok {
		log.Debug().
			Err(fetchErr).
			Str("key", req.Key).
			Msg("Network failed, serving cached value")
		return cached, OutcomeFallback, nil
	}
	return v, 0, fetchErr
}

func cacheOnly[T any](ctx context.Context, e *Engine, req Request[T]) (T, Outcome, error) {
	if v, ok := read(ctx, e, req); ok {
		return v, OutcomeHit, nil
	}
	var zero T
	return zero, 0, fmt.Errorf("%w: %s", ErrNotCached, req.Key)
}

func networkOnly[T any](ctx context.Context, req Request[T]) (T, Outcome, error) {
	v, err := req.Fetch(ctx)
	if err != nil {
		return v, 0, err
	}
	return v, OutcomeNetwork, nil
}

func staleWhileRevalidate[T any](ctx context.Context, e *Engine, req Request[T]) (T, Outcome, error) {
	cached, ok := read(ctx, e, req)
	if !ok {
		// first load waits for the producer
		v, err := req.Fetch(ctx)
		if err != nil {
			return v, 0, err
		}
		persist(ctx, e, req, v)
		return v, OutcomeNetwork, nil
	}

	Revalidate(e, req)
	return cached, OutcomeStale, nil
}

// Revalidate schedules a detached fetch-and-store of req on the engine's runner.
// The refresh outlives the caller's context; its failure is only logged.
func Revalidate[T any](e *Engine, req Request[T]) bool {
	if e.runner == nil || e.disabled {
		return false
	}
	return e.runner.Submit(req.Key, func(ctx context.Context) error {
		v, err := req.Fetch(ctx)
		if err != nil {
			return err
		}
		persist(ctx, e, req, v)
		return nil
	})
}

// read returns the decoded cached value when present, fresh enough and decodable.
func read[T any](ctx context.Context, e *Engine, req Request[T]) (T, bool) {
	var zero T
	if req.Decode == nil || e.cache == nil {
		return zero, false
	}

	entry, err := e.cache.Lookup(ctx, req.Key)
	if err != nil {
		log.Warn().Err(err).Str("key", req.Key).Msg("Cache read failed")
		return zero, false
	}
	if entry == nil {
		return zero, false
	}
	if req.MaxAge > 0 && entry.Age(e.now()) > req.MaxAge {
		return zero, false
	}

	v, err := req.Decode(entry.Data)
	if err != nil {
		log.Warn().Err(err).Str("key", req.Key).Msg("Cached value could not be decoded")
		return zero, false
	}
	return v, true
}

// persist stores v. Failures never fail the resolution.
func persist[T any](ctx context.Context, e *Engine, req Request[T], v T) {
	if req.Encode == nil || e.cache == nil {
		return
	}

	data, err := req.Encode(v)
	if err != nil {
		log.Warn().Err(err).Str("key", req.Key).Msg("Value could not be encoded for caching")
		return
	}
	if err := e.cache.Set(context.WithoutCancel(ctx), req.Key, data, req.Type); err != nil {
		log.Warn().Err(err).Str("key", req.Key).Msg("Cache write failed")
	}
}
