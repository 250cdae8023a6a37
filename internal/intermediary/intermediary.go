// Package intermediary intercepts client requests and answers them from versioned cache
// partitions according to the caching strategy of each resource category.
package intermediary

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/guttosm/offline-cache/internal/domain/model"
	"github.com/guttosm/offline-cache/internal/events"
	"github.com/guttosm/offline-cache/internal/fetch"
	"github.com/guttosm/offline-cache/internal/strategy"
	"github.com/rs/zerolog/log"
)

// KeyPrefix starts every partition key in the shared store.
const KeyPrefix = "sw:"

// Response headers set on intercepted responses.
const (
	HeaderCache          = "X-Cache"
	HeaderCachePartition = "X-Cache-Partition"
)

// cacheOffline is the X-Cache value of placeholder responses.
const cacheOffline = "offline"

// forwardedHeaders are copied from the client request to the upstream request.
var forwardedHeaders = []string{"Accept", "Accept-Language", "Authorization", "Apikey", "Cookie"}

// credentialHeaders identify the caller among forwardedHeaders.
var credentialHeaders = []string{"Authorization", "Apikey", "Cookie"}

// Store is the partition storage. store.Store and store.Disabled implement it.
type Store interface {
	strategy.Cache
	Scan(ctx context.Context, prefix string, fn func(model.EntryMeta) bool) error
	DeletePrefix(ctx context.Context, prefix string) (model.CleanupCount, error)
}

// Upstream sends requests to the network. fetch.Client implements it.
type Upstream interface {
	Do(req *http.Request) (*fetch.Response, error)
}

// Config configures the intermediary.
type Config struct {
	// Version suffixes every partition name.
	Version string
	// OriginURL receives origin-form requests.
	OriginURL string
	// PrecachePaths are fetched from the origin into the static partition on install.
	PrecachePaths []string
	// APIMarker is the path fragment that marks API requests.
	APIMarker string
	// TileSources are the tile mirrors whose hosts are classified as tiles.
	TileSources []string
	// DevServerHost is the host of the development server.
	DevServerHost string
	// NetworkTimeout bounds network-first fetches.
	NetworkTimeout time.Duration
	// SkipWebSocketCaching passes realtime endpoints through.
	SkipWebSocketCaching bool
	// SkipViteResources passes dev-server hot-reload requests through.
	SkipViteResources bool
}

// Intermediary is the request interceptor.
type Intermediary struct {
	cfg        Config
	origin     *url.URL
	store      Store
	upstream   Upstream
	engine     *strategy.Engine
	bus        events.Publisher
	classifier *Classifier
	proxy      *httputil.ReverseProxy

	mu    sync.RWMutex
	state State
}

// New creates an intermediary in the parsed state. bus may be nil.
func New(cfg Config, store Store, upstream Upstream, engine *strategy.Engine, bus events.Publisher) (*Intermediary, error) {
	origin, err := url.Parse(cfg.OriginURL)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("intermediary: invalid origin %q", cfg.OriginURL)
	}
	if cfg.Version == "" {
		cfg.Version = "v1"
	}
	if cfg.NetworkTimeout <= 0 {
		cfg.NetworkTimeout = 5 * time.Second
	}

	i := &Intermediary{
		cfg:        cfg,
		origin:     origin,
		store:      store,
		upstream:   upstream,
		engine:     engine,
		bus:        bus,
		classifier: NewClassifier(cfg),
	}
	i.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			target := i.target(pr.In)
			switch target.Scheme {
			case "ws":
				target.Scheme = "http"
			case "wss":
				target.Scheme = "https"
			}
			pr.Out.URL = target
			pr.Out.Host = target.Host
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warn().Err(err).Str("url", r.URL.String()).Msg("Pass-through request failed")
			w.WriteHeader(http.StatusBadGateway)
		},
	}
	return i, nil
}

// State returns the lifecycle state.
func (i *Intermediary) State() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

func (i *Intermediary) setState(s State) {
	i.mu.Lock()
	from := i.state
	i.state = s
	i.mu.Unlock()
	log.Info().Str("from", from.String()).Str("to", s.String()).Msg("Intermediary state changed")
}

// Version returns the partition version suffix.
func (i *Intermediary) Version() string {
	return i.cfg.Version
}

// PartitionName returns the versioned name of a partition.
func (i *Intermediary) PartitionName(p model.Category) string {
	return string(p) + "-" + i.cfg.Version
}

// CurrentPartitions returns the versioned names of every known partition.
func (i *Intermediary) CurrentPartitions() []string {
	names := make([]string, 0, len(model.Partitions()))
	for _, p := range model.Partitions() {
		names = append(names, i.PartitionName(p))
	}
	return names
}

func (i *Intermediary) key(partition model.Category, method string, target *url.URL) string {
	return KeyPrefix + i.PartitionName(partition) + ":" + method + " " + target.String()
}

// credentialScope suffixes api and dynamic keys with a hash of the caller's credentials.
func credentialScope(category model.Category, header http.Header) string {
	if category != model.CategoryAPI && category != model.CategoryDynamic {
		return ""
	}
	d := xxhash.New()
	found := false
	for _, name := range credentialHeaders {
		for _, v := range header.Values(name) {
			found = true
			_, _ = d.WriteString(name)
			_, _ = d.WriteString("=")
			_, _ = d.WriteString(v)
			_, _ = d.WriteString("\n")
		}
	}
	if !found {
		return ""
	}
	return "#" + strconv.FormatUint(d.Sum64(), 16)
}

func partitionPrefix(name string) string {
	return KeyPrefix + name + ":"
}

// target resolves the upstream URL of r. Absolute-form requests keep their URL; origin-form
// requests go to the origin.
func (i *Intermediary) target(r *http.Request) *url.URL {
	if r.URL.IsAbs() {
		u := *r.URL
		return &u
	}
	u := *i.origin
	u.Path = strings.TrimSuffix(i.origin.Path, "/") + r.URL.Path
	u.RawPath = ""
	u.RawQuery = r.URL.RawQuery
	return &u
}

// Install precaches the static manifest and announces an update when partitions of another
// version exist. A failed precache leaves the intermediary redundant.
func (i *Intermediary) Install(ctx context.Context) error {
	i.mu.Lock()
	if i.state != StateParsed && i.state != StateRedundant {
		state := i.state
		i.mu.Unlock()
		return fmt.Errorf("intermediary: install in state %s", state)
	}
	i.mu.Unlock()
	i.setState(StateInstalling)

	if err := i.precache(ctx); err != nil {
		i.setState(StateRedundant)
		return fmt.Errorf("intermediary: install: %w", err)
	}

	stale, err := i.stalePartitions(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Could not list partitions for update detection")
	}
	if len(stale) > 0 && i.bus != nil {
		i.bus.Publish(events.UpdateAvailable, events.Update{Version: i.cfg.Version, Previous: stale})
		log.Info().Str("version", i.cfg.Version).Strs("previous", stale).Msg("New version installed and waiting")
	}

	i.setState(StateInstalled)
	return nil
}

func (i *Intermediary) precache(ctx context.Context) error {
	for _, p := range i.cfg.PrecachePaths {
		target := i.target(&http.Request{URL: &url.URL{Path: p}})
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
		if err != nil {
			return fmt.Errorf("precache %s: %w", p, err)
		}
		resp, err := i.upstream.Do(req)
		if err != nil {
			return fmt.Errorf("precache %s: %w", p, err)
		}
		if !resp.OK() {
			return fmt.Errorf("precache %s: %w", p, &fetch.StatusError{URL: target.String(), StatusCode: resp.StatusCode, Response: resp})
		}

		data, err := encodeResponse(resp)
		if err != nil {
			return fmt.Errorf("precache %s: %w", p, err)
		}
		if err := i.store.Set(ctx, i.key(model.CategoryStatic, http.MethodGet, target), data, model.TypeData); err != nil {
			return fmt.Errorf("precache %s: %w", p, err)
		}
	}
	log.Debug().Int("paths", len(i.cfg.PrecachePaths)).Msg("Static manifest precached")
	return nil
}

// Activate deletes partitions of other versions and starts intercepting.
func (i *Intermediary) Activate(ctx context.Context) error {
	i.mu.Lock()
	switch i.state {
	case StateActivated:
		i.mu.Unlock()
		return nil
	case StateInstalled:
	default:
		state := i.state
		i.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrNotWaiting, state)
	}
	i.mu.Unlock()
	i.setState(StateActivating)

	if _, err := i.deleteStalePartitions(ctx); err != nil {
		log.Warn().Err(err).Msg("Stale partition cleanup failed during activation")
	}

	i.setState(StateActivated)
	return nil
}

// SkipWaiting activates an installed intermediary immediately.
func (i *Intermediary) SkipWaiting(ctx context.Context) error {
	if i.State() != StateInstalled {
		return ErrNotWaiting
	}
	return i.Activate(ctx)
}

// partitions lists the partition names present in the store.
func (i *Intermediary) partitions(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	err := i.store.Scan(ctx, KeyPrefix, func(m model.EntryMeta) bool {
		rest := strings.TrimPrefix(m.Key, KeyPrefix)
		if name, _, ok := strings.Cut(rest, ":"); ok {
			seen[name] = true
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (i *Intermediary) stalePartitions(ctx context.Context) ([]string, error) {
	names, err := i.partitions(ctx)
	if err != nil {
		return nil, err
	}
	current := make(map[string]bool)
	for _, name := range i.CurrentPartitions() {
		current[name] = true
	}

	var stale []string
	for _, name := range names {
		if !current[name] {
			stale = append(stale, name)
		}
	}
	return stale, nil
}

// deleteStalePartitions removes every partition outside the current version's set.
func (i *Intermediary) deleteStalePartitions(ctx context.Context) (model.CleanupCount, error) {
	stale, err := i.stalePartitions(ctx)
	if err != nil {
		return model.CleanupCount{}, err
	}

	var total model.CleanupCount
	for _, name := range stale {
		count, err := i.store.DeletePrefix(ctx, partitionPrefix(name))
		if err != nil {
			return total, fmt.Errorf("delete partition %s: %w", name, err)
		}
		total = total.Add(count)
		log.Info().Str("partition", name).Int("items", count.Items).Msg("Deleted stale partition")
	}
	return total, nil
}

// CacheSize sums the entry sizes of every partition.
func (i *Intermediary) CacheSize(ctx context.Context) (int64, error) {
	var size int64
	err := i.store.Scan(ctx, KeyPrefix, func(m model.EntryMeta) bool {
		size += m.Size
		return true
	})
	return size, err
}

// ServeHTTP intercepts r once activated. Before that, and for requests that must not be
// cached, it acts as a plain reverse proxy.
func (i *Intermediary) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if i.State() != StateActivated {
		i.proxy.ServeHTTP(w, r)
		return
	}

	target := i.target(r)
	if reason, ok := i.classifier.Bypass(r, target); ok {
		log.Debug().Str("reason", reason).Str("url", target.String()).Msg("Passing request through")
		recordIntercept("bypass", reason)
		i.proxy.ServeHTTP(w, r)
		return
	}

	category := i.classifier.Classify(target)
	i.serve(w, r, target, category)
}

func (i *Intermediary) serve(w http.ResponseWriter, r *http.Request, target *url.URL, category model.Category) {
	ctx := r.Context()
	partition := category.Partition()
	policy := strategy.PolicyFor(category)

	req := strategy.Request[*fetch.Response]{
		Key:    i.key(partition, r.Method, target) + credentialScope(category, r.Header),
		Type:   entryType(category),
		MaxAge: policy.MaxAge,
		Fetch:  i.fetcher(r, target),
		Encode: encodeResponse,
		Decode: decodeResponse,
	}
	s := policy.Strategy
	switch {
	case category == model.CategoryTiles:
		// any cached tile is served while a fresh copy is fetched
		s = strategy.StaleWhileRevalidate
		req.MaxAge = 0
	case s == strategy.NetworkFirst:
		req.Timeout = i.cfg.NetworkTimeout
	}

	resp, outcome, err := strategy.Resolve(ctx, i.engine, s, req)
	if err == nil {
		i.write(w, resp, outcome.String(), partition)
		recordIntercept(string(category), outcome.String())
		return
	}

	if cached, ok := i.read(ctx, req.Key); ok {
		i.write(w, cached, strategy.OutcomeFallback.String(), partition)
		recordIntercept(string(category), strategy.OutcomeFallback.String())
		return
	}

	log.Debug().Err(err).Str("url", target.String()).Str("category", string(category)).Msg("Serving offline placeholder")
	recordIntercept(string(category), cacheOffline)
	w.Header().Set(HeaderCache, cacheOffline)
	w.Header().Set(HeaderCachePartition, i.PartitionName(partition))
	if category == model.CategoryAPI {
		writeUnavailable(w)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// fetcher returns the producer for target. Non-2xx answers are errors carrying the response.
func (i *Intermediary) fetcher(in *http.Request, target *url.URL) func(ctx context.Context) (*fetch.Response, error) {
	header := make(http.Header)
	for _, name := range forwardedHeaders {
		if v := in.Header.Values(name); len(v) > 0 {
			header[http.CanonicalHeaderKey(name)] = v
		}
	}
	method := in.Method

	return func(ctx context.Context) (*fetch.Response, error) {
		req, err := http.NewRequestWithContext(ctx, method, target.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header = header.Clone()

		resp, err := i.upstream.Do(req)
		if err != nil {
			return nil, err
		}
		if !resp.OK() {
			return nil, &fetch.StatusError{URL: target.String(), StatusCode: resp.StatusCode, Response: resp}
		}
		return resp, nil
	}
}

// read is the last-resort partition read. Age is ignored.
func (i *Intermediary) read(ctx context.Context, key string) (*fetch.Response, bool) {
	entry, err := i.store.Lookup(ctx, key)
	if err != nil || entry == nil {
		return nil, false
	}
	resp, err := decodeResponse(entry.Data)
	if err != nil {
		return nil, false
	}
	return resp, true
}

func (i *Intermediary) write(w http.ResponseWriter, resp *fetch.Response, cacheStatus string, partition model.Category) {
	h := w.Header()
	for _, name := range storedHeaders {
		if v := resp.Header.Values(name); len(v) > 0 {
			h[name] = v
		}
	}
	h.Set(HeaderCache, cacheStatus)
	h.Set(HeaderCachePartition, i.PartitionName(partition))
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(resp.Body); err != nil {
		log.Debug().Err(err).Msg("Client went away while writing response")
	}
}

func entryType(c model.Category) string {
	switch c {
	case model.CategoryTiles:
		return model.TypeTile
	case model.CategoryImages:
		return model.TypeImage
	default:
		return model.TypeData
	}
}
