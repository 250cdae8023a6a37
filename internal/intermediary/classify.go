package intermediary

import (
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/guttosm/offline-cache/internal/domain/model"
)

// MaxInterceptedBodySize is the declared request size above which requests pass through.
const MaxInterceptedBodySize = 10 * 1024 * 1024

var (
	staticExtensions = map[string]bool{
		".js": true, ".mjs": true, ".css": true, ".html": true, ".json": true,
		".webmanifest": true, ".wasm": true, ".woff": true, ".woff2": true,
		".ttf": true, ".otf": true, ".eot": true,
	}
	imageExtensions = map[string]bool{
		".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
		".svg": true, ".ico": true, ".avif": true, ".bmp": true,
	}
	devServerPrefixes = []string{"/@vite/", "/@react-refresh", "/@fs/", "/@id/", "/node_modules/.vite/", "/__vite_ping"}
	realtimeMarkers   = []string{"/realtime/", "/socket", "/websocket"}
)

// Bypass reasons.
const (
	bypassScheme    = "scheme"
	bypassMethod    = "method"
	bypassSize      = "size"
	bypassWebSocket = "websocket"
	bypassDevServer = "dev_server"
)

// Classifier sorts requests into categories and spots those that must not be intercepted.
type Classifier struct {
	tileHosts     map[string]bool
	apiMarker     string
	precache      map[string]bool
	devServerHost string
	skipWebSocket bool
	skipDevServer bool
}

// NewClassifier builds a classifier from the intermediary configuration.
func NewClassifier(cfg Config) *Classifier {
	c := &Classifier{
		tileHosts:     make(map[string]bool),
		apiMarker:     cfg.APIMarker,
		precache:      make(map[string]bool),
		devServerHost: cfg.DevServerHost,
		skipWebSocket: cfg.SkipWebSocketCaching,
		skipDevServer: cfg.SkipViteResources,
	}
	for _, source := range cfg.TileSources {
		if u, err := url.Parse(source); err == nil && u.Host != "" {
			c.tileHosts[u.Host] = true
		}
	}
	for _, p := range cfg.PrecachePaths {
		c.precache[p] = true
	}
	return c
}

// Classify returns the category of target. Tile hosts are checked first since tiles carry an
// image extension.
func (c *Classifier) Classify(target *url.URL) model.Category {
	if c.tileHosts[target.Host] {
		return model.CategoryTiles
	}
	if c.precache[target.Path] {
		return model.CategoryStatic
	}

	ext := strings.ToLower(path.Ext(target.Path))
	switch {
	case staticExtensions[ext]:
		return model.CategoryStatic
	case imageExtensions[ext]:
		return model.CategoryImages
	case c.apiMarker != "" && strings.Contains(target.Path, c.apiMarker):
		return model.CategoryAPI
	default:
		return model.CategoryDynamic
	}
}

// Bypass reports whether r must pass through uncached, and why.
func (c *Classifier) Bypass(r *http.Request, target *url.URL) (string, bool) {
	if target.Scheme != "http" && target.Scheme != "https" {
		return bypassScheme, true
	}
	if r.Method != http.MethodGet {
		return bypassMethod, true
	}
	if r.ContentLength > MaxInterceptedBodySize {
		return bypassSize, true
	}
	if isUpgrade(r) {
		return bypassWebSocket, true
	}
	if c.skipWebSocket && hasAny(target.Path, realtimeMarkers) {
		return bypassWebSocket, true
	}
	if c.skipDevServer && c.isDevServer(target) {
		return bypassDevServer, true
	}
	return "", false
}

func (c *Classifier) isDevServer(target *url.URL) bool {
	if c.devServerHost != "" && target.Host == c.devServerHost {
		return true
	}
	for _, prefix := range devServerPrefixes {
		if strings.HasPrefix(target.Path, prefix) {
			return true
		}
	}
	return target.Query().Has("hmr")
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func hasAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
