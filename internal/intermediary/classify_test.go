//go:build !integration

package intermediary

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/guttosm/offline-cache/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClassifier(skip bool) *Classifier {
	return NewClassifier(Config{
		APIMarker:            "/rest/v1/",
		TileSources:          []string{"https://a.tile.test", "https://b.tile.test/styles"},
		PrecachePaths:        []string{"/", "/manifest"},
		DevServerHost:        "localhost:5173",
		SkipWebSocketCaching: skip,
		SkipViteResources:    skip,
	})
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestClassifier_Classify(t *testing.T) {
	c := testClassifier(false)

	tests := []struct {
		url  string
		want model.Category
	}{
		{"https://a.tile.test/15/9510/15921.png", model.CategoryTiles},
		{"https://b.tile.test/styles/3/1/2.png", model.CategoryTiles},
		{"https://app.test/", model.CategoryStatic},
		{"https://app.test/manifest", model.CategoryStatic},
		{"https://app.test/assets/index-abc.js", model.CategoryStatic},
		{"https://app.test/assets/site.CSS", model.CategoryStatic},
		{"https://app.test/fonts/inter.woff2", model.CategoryStatic},
		{"https://cdn.test/photos/beach.jpg", model.CategoryImages},
		{"https://cdn.test/icon.svg", model.CategoryImages},
		{"https://db.test/rest/v1/places?select=*", model.CategoryAPI},
		{"https://app.test/places/42", model.CategoryDynamic},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(mustURL(t, tt.url)))
		})
	}
}

func TestClassifier_Bypass(t *testing.T) {
	tests := []struct {
		name       string
		skip       bool
		method     string
		url        string
		header     http.Header
		length     int64
		wantReason string
		wantBypass bool
	}{
		{name: "plain get", method: http.MethodGet, url: "https://app.test/a.js"},
		{name: "post", method: http.MethodPost, url: "https://app.test/rest/v1/x", wantReason: bypassMethod, wantBypass: true},
		{name: "non http scheme", method: http.MethodGet, url: "ws://app.test/socket", wantReason: bypassScheme, wantBypass: true},
		{name: "oversize", method: http.MethodGet, url: "https://app.test/big", length: MaxInterceptedBodySize + 1, wantReason: bypassSize, wantBypass: true},
		{name: "websocket upgrade always passes", method: http.MethodGet, url: "https://app.test/live", header: http.Header{"Upgrade": {"WebSocket"}}, wantReason: bypassWebSocket, wantBypass: true},
		{name: "realtime path with flag", skip: true, method: http.MethodGet, url: "https://db.test/realtime/v1", wantReason: bypassWebSocket, wantBypass: true},
		{name: "realtime path without flag", method: http.MethodGet, url: "https://db.test/realtime/v1"},
		{name: "vite client with flag", skip: true, method: http.MethodGet, url: "https://app.test/@vite/client", wantReason: bypassDevServer, wantBypass: true},
		{name: "dev server host with flag", skip: true, method: http.MethodGet, url: "http://localhost:5173/src/main.tsx", wantReason: bypassDevServer, wantBypass: true},
		{name: "hmr query with flag", skip: true, method: http.MethodGet, url: "https://app.test/src/App.tsx?hmr=1", wantReason: bypassDevServer, wantBypass: true},
		{name: "vite client without flag", method: http.MethodGet, url: "https://app.test/@vite/client"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.url, nil)
			for k, v := range tt.header {
				r.Header[k] = v
			}
			r.ContentLength = tt.length

			reason, bypass := testClassifier(tt.skip).Bypass(r, mustURL(t, tt.url))

			assert.Equal(t, tt.wantBypass, bypass)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}
