package app

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/guttosm/offline-cache/config"
)

// newOrigin starts a test origin serving an app shell at / and JSON elsewhere.
func newOrigin(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>shell</html>"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// testConfig returns a configuration with background work off and a bolt store in a temp dir.
func testConfig(t *testing.T, originURL string) config.Config {
	t.Helper()
	return config.Config{
		Env: config.EnvDevelopment,
		Server: config.ServerConfig{
			Port:       "0",
			RateWindow: time.Minute,
		},
		Store: config.StoreConfig{
			Backend: BackendBolt,
			Path:    filepath.Join(t.TempDir(), "cache.db"),
			MaxSize: 10 * 1024 * 1024,
			MaxAge:  time.Hour,
		},
		Cleanup: config.CleanupConfig{
			Interval:  time.Hour,
			MaxSize:   10 * 1024 * 1024,
			MaxAge:    time.Hour,
			Threshold: 0.8,
		},
		Intermediary: config.IntermediaryConfig{
			Version:        "v1",
			OriginURL:      originURL,
			PrecachePaths:  []string{"/"},
			APIMarker:      "/rest/v1/",
			NetworkTimeout: time.Second,
		},
		Fetch: config.FetchConfig{
			Timeout:          2 * time.Second,
			MaxBodySize:      1024 * 1024,
			UserAgent:        "offline-cache-test",
			FailureThreshold: 100,
			SuccessThreshold: 1,
			BreakerTimeout:   time.Second,
		},
		Tiles: config.TilesConfig{
			Sources:     []string{originURL + "/tiles"},
			Concurrency: 2,
		},
		Log: config.LogConfig{Level: "error"},
	}
}
