// Package config provides configuration management for the offline cache gateway.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment names recognized by APP_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds the complete application configuration.
type Config struct {
	Env          string
	Server       ServerConfig
	Store        StoreConfig
	Cleanup      CleanupConfig
	Intermediary IntermediaryConfig
	Fetch        FetchConfig
	Tiles        TilesConfig
	Preload      PreloadConfig
	Database     DatabaseConfig
	Log          LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        string
	RateLimit   int
	RateWindow  time.Duration
	CORSOrigins []string
}

// StoreConfig holds persistent store configuration.
type StoreConfig struct {
	// Backend is "bolt" (on-device file) or "mongo".
	Backend string
	// Path is the bbolt database file.
	Path string
	// MaxSize is the store budget in bytes.
	MaxSize int64
	// MaxAge is the age after which an entry is logically expired.
	MaxAge time.Duration
	// Disabled turns every cache read into a miss and every write into a no-op.
	Disabled bool
}

// CleanupConfig drives the periodic cleanup timer.
type CleanupConfig struct {
	AutoCleanup bool
	Interval    time.Duration
	// MaxSize in bytes.
	MaxSize int64
	MaxAge  time.Duration
	// Threshold is the fraction of MaxSize above which a shrink is triggered.
	Threshold float64
}

// IntermediaryConfig holds request interceptor configuration.
type IntermediaryConfig struct {
	Disabled             bool
	Version              string
	OriginURL            string
	PrecachePaths        []string
	APIMarker            string
	DevServerHost        string
	NetworkTimeout       time.Duration
	SkipWebSocketCaching bool
	SkipViteResources    bool
}

// FetchConfig holds upstream HTTP client configuration.
type FetchConfig struct {
	Timeout          time.Duration
	MaxBodySize      int64
	ProbeURL         string
	UserAgent        string
	FailureThreshold int
	SuccessThreshold int
	BreakerTimeout   time.Duration
}

// TilesConfig holds map tile source configuration.
type TilesConfig struct {
	Sources []string
	// RateLimit is the request rate per mirror, per second. Zero disables limiting.
	RateLimit   float64
	Concurrency int
}

// PreloadConfig holds the boot-time preload configuration.
type PreloadConfig struct {
	Enabled bool
	// Await holds startup until the boot preload settles.
	Await          bool
	CriticalImages []string
	Center         [2]float64
	Zoom           int
	Radius         int
	Fonts          []string
	Icons          []string
}

// DatabaseConfig holds MongoDB configuration for the shared store backend.
type DatabaseConfig struct {
	URI          string
	DatabaseName string
	Collection   string
	// CircuitBreaker configuration
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string
	Pretty bool
	Debug  bool
}

// Load creates a Config from environment variables.
func Load() Config {
	env := getEnv("APP_ENV", EnvProduction)
	dev := env == EnvDevelopment

	maxSize := getEnvInt64("CACHE_MAX_SIZE", 100*1024*1024)
	maxAge := getEnvDuration("CACHE_MAX_AGE", 7*24*time.Hour)

	return Config{
		Env: env,
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			RateLimit:   getEnvInt("RATE_LIMIT", 600),
			RateWindow:  getEnvDuration("RATE_WINDOW", time.Minute),
			CORSOrigins: parseCORSOrigins(os.Getenv("CORS_ORIGINS")),
		},
		Store: StoreConfig{
			Backend:  getEnv("STORE_BACKEND", "bolt"),
			Path:     getEnv("STORE_PATH", "data/offline-cache.db"),
			MaxSize:  maxSize,
			MaxAge:   maxAge,
			Disabled: getEnvBool("DISABLE_CACHE", false),
		},
		Cleanup: CleanupConfig{
			AutoCleanup: getEnvBool("CLEANUP_AUTO", true),
			Interval:    getEnvDuration("CLEANUP_INTERVAL", 30*time.Minute),
			MaxSize:     maxSize,
			MaxAge:      maxAge,
			Threshold:   getEnvFloat("CLEANUP_THRESHOLD", 0.8),
		},
		Intermediary: IntermediaryConfig{
			// Disabled in development unless explicitly enabled.
			Disabled:             getEnvBool("DISABLE_SERVICE_WORKER", dev),
			Version:              getEnv("SW_VERSION", "v1"),
			OriginURL:            getEnv("ORIGIN_URL", "http://localhost:3000"),
			PrecachePaths:        parseStringSlice(getEnv("PRECACHE_PATHS", "/,/index.html,/manifest.json")),
			APIMarker:            getEnv("API_MARKER", "/rest/v1/"),
			DevServerHost:        getEnv("DEV_SERVER_HOST", "localhost:5173"),
			NetworkTimeout:       getEnvDuration("NETWORK_TIMEOUT", 5*time.Second),
			SkipWebSocketCaching: getEnvBool("SKIP_WEBSOCKET_CACHING", dev),
			SkipViteResources:    getEnvBool("SKIP_VITE_RESOURCES", dev),
		},
		Fetch: FetchConfig{
			Timeout:          getEnvDuration("FETCH_TIMEOUT", 10*time.Second),
			MaxBodySize:      getEnvInt64("FETCH_MAX_BODY_SIZE", 10*1024*1024),
			ProbeURL:         getEnv("CONNECTIVITY_PROBE_URL", ""),
			UserAgent:        getEnv("FETCH_USER_AGENT", "offline-cache/1.0"),
			FailureThreshold: getEnvInt("CIRCUIT_BREAKER_FAILURE_THRESHOLD", 5),
			SuccessThreshold: getEnvInt("CIRCUIT_BREAKER_SUCCESS_THRESHOLD", 2),
			BreakerTimeout:   getEnvDuration("CIRCUIT_BREAKER_TIMEOUT", 30*time.Second),
		},
		Tiles: TilesConfig{
			Sources: parseStringSlice(getEnv("TILE_SOURCES",
				"https://a.tile.openstreetmap.org,https://b.tile.openstreetmap.org,https://c.tile.openstreetmap.org")),
			RateLimit:   getEnvFloat("TILE_RATE_LIMIT", 10),
			Concurrency: getEnvInt("TILE_CONCURRENCY", 6),
		},
		Preload: PreloadConfig{
			Enabled:        getEnvBool("PRELOAD_ENABLED", true),
			Await:          getEnvBool("PRELOAD_AWAIT", true),
			CriticalImages: parseStringSlice(os.Getenv("PRELOAD_IMAGES")),
			Center:         parseCenter(os.Getenv("PRELOAD_CENTER"), [2]float64{-75.5138, 5.0703}),
			Zoom:           getEnvInt("PRELOAD_ZOOM", 15),
			Radius:         getEnvInt("PRELOAD_RADIUS", 2),
			Fonts:          parseStringSlice(os.Getenv("PRELOAD_FONTS")),
			Icons:          parseStringSlice(os.Getenv("PRELOAD_ICONS")),
		},
		Database: DatabaseConfig{
			URI:                            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			DatabaseName:                   getEnv("MONGODB_DATABASE", "offline_cache"),
			Collection:                     getEnv("MONGODB_COLLECTION", "cache_entries"),
			CircuitBreakerFailureThreshold: getEnvInt("CIRCUIT_BREAKER_FAILURE_THRESHOLD", 5),
			CircuitBreakerSuccessThreshold: getEnvInt("CIRCUIT_BREAKER_SUCCESS_THRESHOLD", 2),
			CircuitBreakerTimeout:          getEnvDuration("CIRCUIT_BREAKER_TIMEOUT", 30*time.Second),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvBool("LOG_PRETTY", dev),
			Debug:  getEnvBool("ENABLE_DEBUG_LOGS", dev),
		},
	}
}

// IsDevelopment reports whether the configuration targets a development context.
func (c Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func parseStringSlice(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			result = append(result, v)
		}
	}
	return result
}

// parseCenter parses "lng,lat".
func parseCenter(s string, defaultValue [2]float64) [2]float64 {
	if s == "" {
		return defaultValue
	}
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return defaultValue
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return defaultValue
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return defaultValue
	}
	return [2]float64{lng, lat}
}

func parseCORSOrigins(s string) []string {
	// Default origins for local development
	defaults := []string{
		"http://localhost:3000",
		"http://localhost:5173",
	}
	if s == "" {
		return defaults
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts)+len(defaults))
	result = append(result, defaults...)
	for _, p := range parts {
		if origin := strings.TrimSpace(p); origin != "" {
			result = append(result, origin)
		}
	}
	return result
}
