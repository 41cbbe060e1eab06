package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// DependencyCheck probes one backing service.
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// dependencyStatus is the per-dependency entry in the health payload.
type dependencyStatus struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

// HealthHandler reports aggregate readiness of the pipeline's backends.
type HealthHandler struct {
	checks  []DependencyCheck
	timeout time.Duration
}

// NewHealthHandler creates the handler.
func NewHealthHandler(checks ...DependencyCheck) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		timeout: 3 * time.Second,
	}
}

// Health handles GET /health. Dependencies are probed in parallel; a single
// failing dependency degrades the aggregate to 503.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	results := make(map[string]dependencyStatus, len(h.checks))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, check := range h.checks {
		wg.Add(1)
		go func(check DependencyCheck) {
			defer wg.Done()
			start := time.Now()
			err := check.Check(ctx)
			status := dependencyStatus{
				Status:    "up",
				LatencyMs: time.Since(start).Milliseconds(),
			}
			if err != nil {
				status.Status = "down"
				status.Error = err.Error()
			}
			mu.Lock()
			results[check.Name] = status
			mu.Unlock()
		}(check)
	}
	wg.Wait()

	overall := "healthy"
	code := http.StatusOK
	for _, s := range results {
		if s.Status != "up" {
			overall = "degraded"
			code = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(code, gin.H{
		"status":       overall,
		"dependencies": results,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}
