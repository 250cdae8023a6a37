//go:build !integration

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestNewShardedRateLimiter(t *testing.T) {
	tests := []struct {
		name       string
		numShards  int
		wantShards int
	}{
		{"default shards when zero", 0, defaultNumShards},
		{"default shards when negative", -1, defaultNumShards},
		{"custom shard count", 8, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewShardedRateLimiter(10, time.Minute, tt.numShards)
			defer rl.Stop()

			assert.Len(t, rl.shards, tt.wantShards)
			assert.Equal(t, 10, rl.rate)
		})
	}
}

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	rl := NewRateLimiter(3, 3*time.Second)
	defer rl.Stop()
	now := time.Now()

	for i := 0; i < 3; i++ {
		allowed, remaining := rl.allow("1.2.3.4", now)
		assert.True(t, allowed)
		assert.Equal(t, 2-i, remaining)
	}
	allowed, _ := rl.allow("1.2.3.4", now)
	assert.False(t, allowed)

	other, _ := rl.allow("5.6.7.8", now)
	assert.True(t, other)

	allowed, _ = rl.allow("1.2.3.4", now.Add(time.Second))
	assert.True(t, allowed)
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	router := gin.New()
	router.Use(RequestID(), rl.RateLimit())
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = serve(router, httptest.NewRequest(http.MethodGet, "/x", nil))
		codes = append(codes, last.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "2", last.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "30", last.Header().Get("Retry-After"))
	assert.Contains(t, last.Body.String(), "rate_limit_exceeded")
}

func TestRateLimiter_CleanupIdle(t *testing.T) {
	rl := NewRateLimiter(5, time.Second)
	defer rl.Stop()
	now := time.Now()

	rl.allow("old", now.Add(-time.Minute))
	rl.allow("fresh", now)
	rl.cleanupIdle(now)

	total, perShard := rl.Stats()
	assert.Equal(t, 1, total)
	assert.Len(t, perShard, defaultNumShards)
	rl.Stop()
}
