//go:build !integration

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/offline-cache/internal/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func openBreaker(t *testing.T, name string) *circuitbreaker.CircuitBreaker {
	t.Helper()
	cb := circuitbreaker.New(circuitbreaker.Config{Name: name, FailureThreshold: 1})
	_ = cb.Execute(context.Background(), func() error { return errors.New("boom") })
	require.True(t, cb.IsOpen())
	return cb
}

func serveHealth(h *HealthHandler, path string) *httptest.ResponseRecorder {
	r := gin.New()
	h.Register(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthHandler_Liveness(t *testing.T) {
	w := serveHealth(NewHealthHandler(), "/healthz")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealthHandler_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(t *testing.T, h *HealthHandler)
		wantStatus int
		wantCheck  string
	}{
		{
			name:       "no checks",
			setup:      func(*testing.T, *HealthHandler) {},
			wantStatus: http.StatusOK,
			wantCheck:  "service",
		},
		{
			name: "passing checker",
			setup: func(_ *testing.T, h *HealthHandler) {
				h.RegisterChecker("store", func(context.Context) error { return nil })
			},
			wantStatus: http.StatusOK,
			wantCheck:  "store",
		},
		{
			name: "failing checker",
			setup: func(_ *testing.T, h *HealthHandler) {
				h.RegisterChecker("store", func(context.Context) error { return errors.New("closed") })
			},
			wantStatus: http.StatusServiceUnavailable,
			wantCheck:  "store",
		},
		{
			name: "open critical breaker",
			setup: func(t *testing.T, h *HealthHandler) {
				h.RegisterCircuitBreaker("mongodb", openBreaker(t, "mongodb"))
			},
			wantStatus: http.StatusServiceUnavailable,
			wantCheck:  "mongodb_circuits",
		},
		{
			name: "open upstream breaker is reported only",
			setup: func(t *testing.T, h *HealthHandler) {
				cb := openBreaker(t, "tile.test")
				h.RegisterBreakerSource("upstream", func() []circuitbreaker.Stats {
					return []circuitbreaker.Stats{cb.GetStats()}
				})
			},
			wantStatus: http.StatusOK,
			wantCheck:  "upstream_circuits",
		},
		{
			name: "nil breaker is ignored",
			setup: func(_ *testing.T, h *HealthHandler) {
				h.RegisterCircuitBreaker("mongodb", nil)
			},
			wantStatus: http.StatusOK,
			wantCheck:  "service",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler()
			tt.setup(t, h)

			w := serveHealth(h, "/readyz")

			assert.Equal(t, tt.wantStatus, w.Code)
			var body struct {
				Status string         `json:"status"`
				Checks map[string]any `json:"checks"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Contains(t, body.Checks, tt.wantCheck)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "ok", body.Status)
			} else {
				assert.Equal(t, "degraded", body.Status)
			}
		})
	}
}
