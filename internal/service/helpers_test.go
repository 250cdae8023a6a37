//go:build !integration

package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/guttosm/offline-cache/internal/fetch"
	"github.com/guttosm/offline-cache/internal/repository"
	"github.com/guttosm/offline-cache/internal/store"
	"github.com/guttosm/offline-cache/internal/testutil"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, cfg store.Config) (*store.Store, *testutil.Clock) {
	t.Helper()
	boltCfg := repository.DefaultBoltConfig(filepath.Join(t.TempDir(), "cache.db"))
	boltCfg.NoSync = true

	clock := testutil.NewClock(epoch)
	s := store.New(repository.NewBoltRepository(boltCfg), cfg, store.WithClock(clock.Now))
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, clock
}

// fakeFetcher serves canned bodies by URL and counts calls.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	calls  map[string]int
	total  atomic.Int32
	// gate, when set, blocks every fetch until closed.
	gate chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{bodies: make(map[string][]byte), calls: make(map[string]int)}
}

func (f *fakeFetcher) set(url string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[url] = body
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) urls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	urls := make([]string, 0, len(f.calls))
	for u := range f.calls {
		urls = append(urls, u)
	}
	return urls
}

func (f *fakeFetcher) Get(ctx context.Context, url string) (*fetch.Response, error) {
	f.total.Add(1)
	f.mu.Lock()
	f.calls[url]++
	body, ok := f.bodies[url]
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		resp := &fetch.Response{URL: url, StatusCode: http.StatusNotFound}
		return resp, &fetch.StatusError{URL: url, StatusCode: http.StatusNotFound, Response: resp}
	}
	return &fetch.Response{URL: url, StatusCode: http.StatusOK, Body: body}, nil
}

type offline struct{}

func (offline) Online(context.Context) bool { return false }

// pngImage encodes a w×h opaque PNG.
func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

const (
	testWait = 2 * time.Second
	testTick = 5 * time.Millisecond
)
