//go:build !integration

package intermediary

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/guttosm/offline-cache/internal/domain/dto"
	"github.com/guttosm/offline-cache/internal/domain/model"
	"github.com/guttosm/offline-cache/internal/events"
	"github.com/guttosm/offline-cache/internal/fetch"
	"github.com/guttosm/offline-cache/internal/repository"
	"github.com/guttosm/offline-cache/internal/store"
	"github.com/guttosm/offline-cache/internal/strategy"
	"github.com/guttosm/offline-cache/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upstream is a test origin that counts requests per path and can be switched to failing.
type upstream struct {
	*httptest.Server
	mu      sync.Mutex
	hits    map[string]int
	methods []string
	failing atomic.Bool
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{hits: make(map[string]int)}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.hits[r.URL.Path]++
		u.methods = append(u.methods, r.Method)
		u.mu.Unlock()

		if u.failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		switch r.URL.Path {
		case "/", "/index.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>app</html>"))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("no such page"))
		default:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"path":"` + r.URL.Path + `"}`))
		}
	}))
	t.Cleanup(u.Close)
	return u
}

func (u *upstream) count(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[path]
}

type fixture struct {
	im     *Intermediary
	store  *store.Store
	runner *strategy.Runner
	bus    *events.Bus
	origin *upstream
	tiles  *upstream
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	origin := newUpstream(t)
	tiles := newUpstream(t)

	boltCfg := repository.DefaultBoltConfig(filepath.Join(t.TempDir(), "cache.db"))
	boltCfg.NoSync = true
	clock := testutil.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	st := store.New(repository.NewBoltRepository(boltCfg), store.Config{}, store.WithClock(clock.Now))
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	runner := strategy.NewRunner(strategy.RunnerConfig{QueueSize: 16, Workers: 1, TaskTimeout: time.Second})
	t.Cleanup(runner.Stop)
	engine := strategy.NewEngine(st, runner, strategy.WithClock(clock.Now))

	fetchCfg := fetch.DefaultConfig()
	fetchCfg.Breaker.FailureThreshold = 100
	bus := events.NewBus()

	cfg := Config{
		Version:        "v2",
		OriginURL:      origin.URL,
		PrecachePaths:  []string{"/", "/index.html"},
		APIMarker:      "/rest/v1/",
		TileSources:    []string{tiles.URL},
		NetworkTimeout: time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	im, err := New(cfg, st, fetch.New(fetchCfg), engine, bus)
	require.NoError(t, err)
	return &fixture{im: im, store: st, runner: runner, bus: bus, origin: origin, tiles: tiles}
}

func (f *fixture) activate(t *testing.T) {
	t.Helper()
	require.NoError(t, f.im.Install(context.Background()))
	require.NoError(t, f.im.Activate(context.Background()))
}

func (f *fixture) get(target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.im.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestNew_InvalidOrigin(t *testing.T) {
	_, err := New(Config{OriginURL: "not a url"}, store.Disabled{}, fetch.New(fetch.DefaultConfig()), nil, nil)
	assert.Error(t, err)
}

func TestIntermediary_Lifecycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	assert.Equal(t, StateParsed, f.im.State())
	assert.ErrorIs(t, f.im.Activate(ctx), ErrNotWaiting)

	require.NoError(t, f.im.Install(ctx))
	assert.Equal(t, StateInstalled, f.im.State())
	assert.Equal(t, 1, f.origin.count("/index.html"))

	// not yet controlling: requests pass through uncached
	w := f.get("/data/1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(HeaderCache))
	assert.Equal(t, 1, f.origin.count("/data/1"))

	require.NoError(t, f.im.SkipWaiting(ctx))
	assert.Equal(t, StateActivated, f.im.State())
	assert.ErrorIs(t, f.im.SkipWaiting(ctx), ErrNotWaiting)
	assert.NoError(t, f.im.Activate(ctx))
}

func TestIntermediary_InstallFailureIsRedundant(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.PrecachePaths = []string{"/", "/missing"} })

	err := f.im.Install(context.Background())

	require.Error(t, err)
	assert.True(t, fetch.IsStatus(err, http.StatusNotFound))
	assert.Equal(t, StateRedundant, f.im.State())

	w := f.get("/data/1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(HeaderCache))
}

func TestIntermediary_UpdateDetectionAndActivationCleanup(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, "sw:static-v1:GET https://app.test/", []byte("old"), model.TypeData))
	require.NoError(t, f.store.Set(ctx, "sw:images-v1:GET https://app.test/a.png", []byte("old"), model.TypeImage))
	require.NoError(t, f.store.Set(ctx, "img:other", []byte("kept"), model.TypeImage))

	ch, unsubscribe := f.bus.Subscribe()
	defer unsubscribe()

	require.NoError(t, f.im.Install(ctx))

	select {
	case ev := <-ch:
		assert.Equal(t, events.UpdateAvailable, ev.Name)
		assert.Equal(t, events.Update{Version: "v2", Previous: []string{"images-v1", "static-v1"}}, ev.Data)
	case <-time.After(time.Second):
		t.Fatal("no update event published")
	}

	require.NoError(t, f.im.Activate(ctx))

	stale, err := f.im.stalePartitions(ctx)
	require.NoError(t, err)
	assert.Empty(t, stale)
	kept, err := f.store.Has(ctx, "img:other")
	require.NoError(t, err)
	assert.True(t, kept)
}

func TestIntermediary_StaticCacheFirst(t *testing.T) {
	f := newFixture(t, nil)
	f.activate(t)

	first := f.get("/assets/app.js")
	second := f.get("/assets/app.js")

	assert.Equal(t, "miss", first.Header().Get(HeaderCache))
	assert.Equal(t, "hit", second.Header().Get(HeaderCache))
	assert.Equal(t, "static-v2", second.Header().Get(HeaderCachePartition))
	assert.JSONEq(t, `{"path":"/assets/app.js"}`, second.Body.String())
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Equal(t, 1, f.origin.count("/assets/app.js"))
}

func TestIntermediary_PrecachedShellServedOffline(t *testing.T) {
	f := newFixture(t, nil)
	f.activate(t)
	f.origin.Close()

	w := f.get("/index.html")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hit", w.Header().Get(HeaderCache))
	assert.Equal(t, "<html>app</html>", w.Body.String())
}

func TestIntermediary_APINetworkFirst(t *testing.T) {
	f := newFixture(t, nil)
	f.activate(t)

	online := f.get("/rest/v1/places")
	assert.Equal(t, "miss", online.Header().Get(HeaderCache))
	assert.Equal(t, "dynamic-v2", online.Header().Get(HeaderCachePartition))

	f.origin.failing.Store(true)
	fallback := f.get("/rest/v1/places")
	assert.Equal(t, http.StatusOK, fallback.Code)
	assert.Equal(t, "fallback", fallback.Header().Get(HeaderCache))
	assert.JSONEq(t, `{"path":"/rest/v1/places"}`, fallback.Body.String())
	assert.Equal(t, 2, f.origin.count("/rest/v1/places"))
}

func TestIntermediary_APIOfflineWithoutCache(t *testing.T) {
	f := newFixture(t, nil)
	f.activate(t)
	f.origin.Close()

	w := f.get("/rest/v1/uncached")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, cacheOffline, w.Header().Get(HeaderCache))
	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, dto.ErrCodeOffline, body.Error)
	assert.Equal(t, dto.OfflineMessage, body.Message)
}

func TestIntermediary_DynamicOfflineIsEmptySuccess(t *testing.T) {
	f := newFixture(t, nil)
	f.activate(t)
	f.origin.Close()

	w := f.get("/places/42")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, cacheOffline, w.Header().Get(HeaderCache))
	assert.Empty(t, w.Body.String())
}

func TestIntermediary_OriginErrorsWithoutCache(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		failing   bool
		wantCode  int
		wantEmpty bool
	}{
		{name: "api on 500", path: "/rest/v1/buses", failing: true, wantCode: http.StatusServiceUnavailable},
		{name: "dynamic on 404", path: "/missing", wantCode: http.StatusOK, wantEmpty: true},
		{name: "dynamic on 500", path: "/places/7", failing: true, wantCode: http.StatusOK, wantEmpty: true},
		{name: "static on 500", path: "/assets/app.css", failing: true, wantCode: http.StatusOK, wantEmpty: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.activate(t)
			f.origin.failing.Store(tt.failing)

			w := f.get(tt.path)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, cacheOffline, w.Header().Get(HeaderCache))
			assert.NotContains(t, w.Body.String(), "no such page")
			if tt.wantEmpty {
				assert.Empty(t, w.Body.String())
			}
			assert.Equal(t, 1, f.origin.count(tt.path))
		})
	}
}

func TestIntermediary_CredentialScopedEntries(t *testing.T) {
	f := newFixture(t, nil)
	f.activate(t)

	request := func(token string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/rest/v1/me", nil)
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		f.im.ServeHTTP(w, r)
		return w
	}

	require.Equal(t, "miss", request("alice").Header().Get(HeaderCache))
	f.origin.failing.Store(true)

	alice := request("alice")
	assert.Equal(t, "fallback", alice.Header().Get(HeaderCache))
	assert.JSONEq(t, `{"path":"/rest/v1/me"}`, alice.Body.String())

	bob := request("bob")
	assert.Equal(t, http.StatusServiceUnavailable, bob.Code)
	assert.Equal(t, cacheOffline, bob.Header().Get(HeaderCache))

	anonymous := request("")
	assert.Equal(t, http.StatusServiceUnavailable, anonymous.Code)
}

func TestCredentialScope(t *testing.T) {
	withToken := func(v string) http.Header { return http.Header{"Authorization": {v}} }

	assert.Empty(t, credentialScope(model.CategoryAPI, http.Header{}))
	assert.Empty(t, credentialScope(model.CategoryStatic, withToken("Bearer a")))
	assert.Empty(t, credentialScope(model.CategoryTiles, http.Header{"Cookie": {"s=1"}}))
	assert.NotEmpty(t, credentialScope(model.CategoryDynamic, http.Header{"Cookie": {"s=1"}}))
	assert.Equal(t, credentialScope(model.CategoryAPI, withToken("Bearer a")), credentialScope(model.CategoryAPI, withToken("Bearer a")))
	assert.NotEqual(t, credentialScope(model.CategoryAPI, withToken("Bearer a")), credentialScope(model.CategoryAPI, withToken("Bearer b")))
	assert.NotEqual(t, credentialScope(model.CategoryAPI, withToken("a")), credentialScope(model.CategoryAPI, http.Header{"Apikey": {"a"}}))
}

func TestIntermediary_TilesStaleWhileRevalidate(t *testing.T) {
	f := newFixture(t, nil)
	f.activate(t)
	tile := f.tiles.URL + "/15/9510/15921.png"

	cold := f.get(tile)
	assert.Equal(t, "miss", cold.Header().Get(HeaderCache))
	assert.Equal(t, "tiles-v2", cold.Header().Get(HeaderCachePartition))

	warm := f.get(tile)
	assert.Equal(t, "stale", warm.Header().Get(HeaderCache))
	f.runner.Wait()
	assert.Equal(t, 2, f.tiles.count("/15/9510/15921.png"))

	// a failing mirror never turns a cached tile into an error
	f.tiles.failing.Store(true)
	cached := f.get(tile)
	assert.Equal(t, http.StatusOK, cached.Code)
	assert.Equal(t, "stale", cached.Header().Get(HeaderCache))
	f.runner.Wait()

	entry, err := f.store.Lookup(context.Background(), "sw:tiles-v2:GET "+tile)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, model.TypeTile, entry.Type)
}

func TestIntermediary_TileColdMissOffline(t *testing.T) {
	f := newFixture(t, nil)
	f.activate(t)
	f.tiles.failing.Store(true)

	w := f.get(f.tiles.URL + "/3/1/2.png")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, cacheOffline, w.Header().Get(HeaderCache))
	assert.Empty(t, w.Body.Bytes())
}

func TestIntermediary_BypassPassesThrough(t *testing.T) {
	f := newFixture(t, nil)
	f.activate(t)

	w := httptest.NewRecorder()
	f.im.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rest/v1/places", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(HeaderCache))
	f.origin.mu.Lock()
	assert.Contains(t, f.origin.methods, http.MethodPost)
	f.origin.mu.Unlock()

	size, err := f.im.CacheSize(context.Background())
	require.NoError(t, err)
	again := httptest.NewRecorder()
	f.im.ServeHTTP(again, httptest.NewRequest(http.MethodPost, "/rest/v1/places", nil))
	after, err := f.im.CacheSize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, size, after)
}

func TestIntermediary_HandleMessage(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, "sw:dynamic-v1:GET https://app.test/x", []byte("12345"), model.TypeData))
	require.NoError(t, f.im.Install(ctx))

	reply, err := f.im.HandleMessage(ctx, Message{Type: MessageGetCacheSize})
	require.NoError(t, err)
	require.NotNil(t, reply.Size)
	assert.Greater(t, *reply.Size, int64(5))
	sizeWithOld := *reply.Size

	reply, err = f.im.HandleMessage(ctx, Message{Type: MessageCleanCache})
	require.NoError(t, err)
	require.NotNil(t, reply.Success)
	assert.True(t, *reply.Success)

	reply, err = f.im.HandleMessage(ctx, Message{Type: MessageGetCacheSize})
	require.NoError(t, err)
	assert.Equal(t, sizeWithOld-5, *reply.Size)

	reply, err = f.im.HandleMessage(ctx, Message{Type: MessageSkipWaiting})
	require.NoError(t, err)
	assert.True(t, *reply.Success)
	assert.Equal(t, StateActivated, f.im.State())

	reply, err = f.im.HandleMessage(ctx, Message{Type: MessageSkipWaiting})
	require.NoError(t, err)
	assert.False(t, *reply.Success)

	_, err = f.im.HandleMessage(ctx, Message{Type: "PING"})
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestStateString(t *testing.T) {
	text, err := StateActivated.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "activated", string(text))
	assert.Equal(t, "redundant", StateRedundant.String())
	assert.Equal(t, "unknown", State(99).String())
}
