//go:build !integration

package http

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/guttosm/offline-cache/internal/events"
	"github.com/guttosm/offline-cache/internal/intermediary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_ProxiesUnknownPaths(t *testing.T) {
	f := newFixture(t)
	before := f.hits.Load()

	w := f.do(http.MethodGet, "/", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<html>app</html>", w.Body.String())
	assert.Equal(t, "hit", w.Header().Get(intermediary.HeaderCache))
	assert.Equal(t, "static-v1", w.Header().Get(intermediary.HeaderCachePartition))
	assert.Equal(t, before, f.hits.Load(), "precached shell is served without the network")
}

func TestRouter_ProxyPassesPostThrough(t *testing.T) {
	f := newFixture(t)
	before := f.hits.Load()

	w := f.do(http.MethodPost, "/rest/v1/places", `{"name":"x"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(intermediary.HeaderCache))
	assert.Equal(t, before+1, f.hits.Load())
}

func TestRouter_AdminMiddleware(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/_sw/stats", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Body.String(), `"request_id":"req-123"`)
}

func TestRouter_Metrics(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/_sw/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRouter_RateLimit(t *testing.T) {
	cfg := DefaultRouterConfig()
	cfg.RateLimit = 2
	router, stop := NewRouter(&Handler{}, NewHealthHandler(), http.NotFoundHandler(), cfg)
	defer stop()

	codes := make([]int, 0, 3)
	for range 3 {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/_sw/healthz", nil))
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRouter_RateLimitSkipsInterceptedTraffic(t *testing.T) {
	cfg := DefaultRouterConfig()
	cfg.RateLimit = 5
	proxy := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	router, stop := NewRouter(&Handler{}, NewHealthHandler(), proxy, cfg)
	defer stop()

	codes := make(map[int]int)
	for range 20 {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tiles/15/9510/15921.png", nil))
		codes[w.Code]++
	}

	assert.Equal(t, map[int]int{http.StatusOK: 20}, codes)
}

func TestRouter_Swagger(t *testing.T) {
	router, stop := NewRouter(&Handler{}, NewHealthHandler(), http.NotFoundHandler(), DefaultRouterConfig())
	defer stop()

	tests := []struct {
		path     string
		contains string
	}{
		{"/_sw/swagger/index.html", "swagger-ui"},
		{"/_sw/swagger/doc.json", "/_sw/stats"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), tt.contains)
		})
	}
}

func TestRouter_EventStream(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// the subscription starts inside the handler, so publish until the stream picks one up
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				f.bus.Publish(events.CacheCleaned, map[string]int{"items": 3})
			}
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/_sw/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	scanner := bufio.NewScanner(resp.Body)
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		lines = append(lines, line)
		if strings.HasPrefix(line, "data:") {
			break
		}
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "event:"+events.CacheCleaned, lines[0])
	assert.JSONEq(t, `{"items":3}`, strings.TrimPrefix(lines[1], "data:"))
}
