// Package ratelimit provides a per-key cooldown gate shared by inbound and
// outbound channels so a single session cannot flood either side.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedKeys caps the number of tracked keys so rotating keys cannot
// exhaust memory.
const maxTrackedKeys = 8192

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Gate enforces a cooldown between events for the same key.
// Safe for concurrent use.
type Gate struct {
	mu       sync.Mutex
	entries  map[string]*entry
	cooldown time.Duration
	burst    int
	idleTTL  time.Duration
}

// NewGate allows burst events per key, refilling one every cooldown.
// A zero cooldown disables the gate.
func NewGate(cooldown time.Duration, burst int) *Gate {
	if burst <= 0 {
		burst = 1
	}
	ttl := 10 * cooldown
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return &Gate{
		entries:  make(map[string]*entry),
		cooldown: cooldown,
		burst:    burst,
		idleTTL:  ttl,
	}
}

func (g *Gate) limiter(key string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if len(g.entries) >= maxTrackedKeys {
		g.pruneLocked(now)
	}
	e, ok := g.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Every(g.cooldown), g.burst)}
		g.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (g *Gate) pruneLocked(now time.Time) {
	for k, e := range g.entries {
		if now.Sub(e.lastSeen) >= g.idleTTL {
			delete(g.entries, k)
		}
	}
	// Hard eviction if still at cap.
	for len(g.entries) >= maxTrackedKeys {
		for k := range g.entries {
			delete(g.entries, k)
			break
		}
	}
}

// Allow reports whether an event for key may happen now.
func (g *Gate) Allow(key string) bool {
	if g == nil || g.cooldown <= 0 {
		return true
	}
	return g.limiter(key).Allow()
}

// Wait blocks until an event for key may happen or ctx is done.
func (g *Gate) Wait(ctx context.Context, key string) error {
	if g == nil || g.cooldown <= 0 {
		return nil
	}
	return g.limiter(key).Wait(ctx)
}

// Forget drops the state for key.
func (g *Gate) Forget(key string) {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, key)
}

// Len returns the number of tracked keys.
func (g *Gate) Len() int {
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
