package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/offline-cache/internal/circuitbreaker"
)

// readinessTimeout bounds every readiness check.
const readinessTimeout = 2 * time.Second

// CheckFunc reports a dependency failure.
type CheckFunc func(ctx context.Context) error

// BreakerSource lists the circuit breakers guarding a dependency.
type BreakerSource func() []circuitbreaker.Stats

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	checkers map[string]CheckFunc
	breakers map[string]BreakerSource
	// critical breakers make the gateway unready when open; the others are reported only
	critical map[string]bool
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		checkers: make(map[string]CheckFunc),
		breakers: make(map[string]BreakerSource),
		critical: make(map[string]bool),
	}
}

// RegisterChecker adds a readiness check.
func (h *HealthHandler) RegisterChecker(name string, check CheckFunc) {
	h.checkers[name] = check
}

// RegisterCircuitBreaker reports cb in readiness. An open breaker makes the gateway unready.
func (h *HealthHandler) RegisterCircuitBreaker(name string, cb *circuitbreaker.CircuitBreaker) {
	if cb == nil {
		return
	}
	h.breakers[name] = func() []circuitbreaker.Stats { return []circuitbreaker.Stats{cb.GetStats()} }
	h.critical[name] = true
}

// RegisterBreakerSource reports a set of breakers without affecting readiness.
// Upstream mirrors going down is what the cache exists for.
func (h *HealthHandler) RegisterBreakerSource(name string, source BreakerSource) {
	h.breakers[name] = source
}

// Register registers health endpoints on the router group.
func (h *HealthHandler) Register(rg gin.IRoutes) {
	rg.GET("/healthz", h.Liveness)
	rg.GET("/readyz", h.Readiness)
}

// Liveness handles the liveness probe endpoint.
// @Summary     Liveness probe
// @Tags        Health
// @Produce     json
// @Success     200 {object} map[string]string "Gateway is alive"
// @Router      /_sw/healthz [get]
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness reports dependency checks and circuit breaker states.
// @Summary     Readiness probe
// @Description Fails when the store is unreachable or its circuit breaker is open. Upstream breakers are reported only.
// @Tags        Health
// @Produce     json
// @Success     200 {object} map[string]interface{} "Gateway is ready"
// @Failure     503 {object} map[string]interface{} "Gateway is not ready"
// @Router      /_sw/readyz [get]
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]any)

	for name, check := range h.checkers {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks[name] = "ok"
		}
	}

	for name, source := range h.breakers {
		stats := source()
		checks[name+"_circuits"] = stats
		if !h.critical[name] {
			continue
		}
		for _, s := range stats {
			if !s.IsHealthy {
				status = http.StatusServiceUnavailable
			}
		}
	}

	if len(checks) == 0 {
		checks["service"] = "ok"
	}

	c.JSON(status, gin.H{
		"status": map[bool]string{true: "ok", false: "degraded"}[status == http.StatusOK],
		"checks": checks,
	})
}
