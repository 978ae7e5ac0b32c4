package handlers

import (
	"strings"
	"sync"
	"time"
)

// rateLimiter throttles unauthenticated guest lookups per caller key.
type rateLimiter interface {
	Allow(key string) bool
}

// lookupThrottle is a fixed-window counter keyed by client address. Guest
// order lookup is the only unauthenticated read, so a coarse window is
// enough to stop order-number enumeration.
type lookupThrottle struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	windows map[string]lookupWindow
}

type lookupWindow struct {
	hits    int
	expires time.Time
}

func newSimpleRateLimiter(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &lookupThrottle{
		limit:   limit,
		window:  window,
		clock:   clock,
		windows: make(map[string]lookupWindow),
	}
}

func (t *lookupThrottle) Allow(key string) bool {
	if t == nil {
		return true
	}
	if key = strings.TrimSpace(key); key == "" {
		key = "anonymous"
	}

	now := t.clock()
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[key]
	if !ok || now.After(w.expires) {
		t.dropStaleLocked(now)
		t.windows[key] = lookupWindow{hits: 1, expires: now.Add(t.window)}
		return true
	}
	if w.hits >= t.limit {
		return false
	}
	w.hits++
	t.windows[key] = w
	return true
}

// dropStaleLocked evicts expired windows so the map stays bounded by the
// number of distinct callers inside one window.
func (t *lookupThrottle) dropStaleLocked(now time.Time) {
	for key, w := range t.windows {
		if now.After(w.expires) {
			delete(t.windows, key)
		}
	}
}
