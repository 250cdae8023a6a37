package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// cacheHeader is set by the intermediary on intercepted responses.
const cacheHeader = "X-Cache"

// RequestLogger returns a middleware that logs one structured line per request.
// Intercepted requests also log how the cache answered.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		statusCode := c.Writer.Status()
		event := log.WithLevel(levelFor(statusCode)).
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status_code", statusCode).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Str("ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent())
		if cache := c.Writer.Header().Get(cacheHeader); cache != "" {
			event = event.Str("cache", cache)
		}
		event.Msg("HTTP request")
	}
}

// levelFor returns the log level based on HTTP status code.
func levelFor(statusCode int) zerolog.Level {
	switch {
	case statusCode >= 500:
		return zerolog.ErrorLevel
	case statusCode >= 400:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
