// Package ratelimit provides the per-client request gate implementations.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/ccs/internal/domain/service"
	"github.com/turtacn/ccs/pkg/logger"
)

// clientWindow tracks one client's usage inside the current window.
type clientWindow struct {
	windowStart time.Time
	count       int
	lastSeen    time.Time
}

// SlidingWindowGate is the single-instance in-memory request gate. Each
// client key gets a fixed-duration window; the first request after expiry
// resets it. A background sweeper purges keys idle longer than twice the
// window so the map does not grow with one entry per client forever.
type SlidingWindowGate struct {
	mu      sync.Mutex
	windows map[string]*clientWindow

	window      time.Duration
	maxRequests int

	log      logger.Logger
	stopOnce sync.Once
	stop     chan struct{}

	// now is swappable for tests.
	now func() time.Time
}

// NewSlidingWindowGate builds the gate and starts the sweeper.
func NewSlidingWindowGate(window time.Duration, maxRequests int, sweepInterval time.Duration, log logger.Logger) *SlidingWindowGate {
	g := &SlidingWindowGate{
		windows:     make(map[string]*clientWindow),
		window:      window,
		maxRequests: maxRequests,
		log:         log.WithComponent("request_gate"),
		stop:        make(chan struct{}),
		now:         time.Now,
	}
	if sweepInterval > 0 {
		go g.sweepLoop(sweepInterval)
	}
	return g
}

// Admit records one request for clientKey and reports the verdict. A key
// with no live window is always admitted.
func (g *SlidingWindowGate) Admit(_ context.Context, clientKey string) service.AdmitResult {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	w, ok := g.windows[clientKey]
	if !ok || now.Sub(w.windowStart) >= g.window {
		g.windows[clientKey] = &clientWindow{windowStart: now, count: 1, lastSeen: now}
		return service.AdmitResult{
			Allowed:   true,
			Limit:     g.maxRequests,
			Remaining: g.maxRequests - 1,
		}
	}

	w.lastSeen = now
	if w.count >= g.maxRequests {
		return service.AdmitResult{
			Allowed:    false,
			Limit:      g.maxRequests,
			Remaining:  0,
			RetryAfter: w.windowStart.Add(g.window).Sub(now),
		}
	}

	w.count++
	return service.AdmitResult{
		Allowed:   true,
		Limit:     g.maxRequests,
		Remaining: g.maxRequests - w.count,
	}
}

// Close stops the sweeper.
func (g *SlidingWindowGate) Close() error {
	g.stopOnce.Do(func() { close(g.stop) })
	return nil
}

func (g *SlidingWindowGate) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.sweep()
		case <-g.stop:
			return
		}
	}
}

// sweep drops entries idle longer than twice the window.
func (g *SlidingWindowGate) sweep() {
	cutoff := g.now().Add(-2 * g.window)

	g.mu.Lock()
	removed := 0
	for key, w := range g.windows {
		if w.lastSeen.Before(cutoff) {
			delete(g.windows, key)
			removed++
		}
	}
	remaining := len(g.windows)
	g.mu.Unlock()

	if removed > 0 {
		g.log.Debug(context.Background(), "stale gate entries purged",
			logger.Int("removed", removed),
			logger.Int("remaining", remaining),
		)
	}
}
