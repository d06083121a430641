package authapi

import (
	"sync"
	"time"
)

// pruneAbove bounds the key map; past it, elapsed windows are dropped
// before admitting new hits.
const pruneAbove = 4096

// WindowLimiter is a fixed-window counter keyed by client address.
//
// Each key gets its own window boundary, stamped on its first hit and
// renewed on rollover. Safe for concurrent use.
type WindowLimiter struct {
	mu sync.Mutex

	max    int
	window time.Duration

	counts map[string]*windowCount
}

type windowCount struct {
	start time.Time
	hits  int
}

// NewWindowLimiter creates a limiter allowing max hits per key per window.
// A non-positive max disables the limiter.
func NewWindowLimiter(max int, window time.Duration) *WindowLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &WindowLimiter{
		max:    max,
		window: window,
		counts: make(map[string]*windowCount),
	}
}

// Allow records one hit for key and reports whether it stays within the
// limit. On rejection it returns the time until the key's window resets.
func (l *WindowLimiter) Allow(key string, now time.Time) (bool, time.Duration) {
	if l == nil || l.max <= 0 || key == "" {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.counts) >= pruneAbove {
		l.prune(now)
	}

	wc, ok := l.counts[key]
	if !ok || now.Sub(wc.start) >= l.window {
		wc = &windowCount{start: now}
		l.counts[key] = wc
	}

	wc.hits++
	if wc.hits > l.max {
		retryAfter := wc.start.Add(l.window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter
	}
	return true, 0
}

func (l *WindowLimiter) prune(now time.Time) {
	for k, wc := range l.counts {
		if now.Sub(wc.start) >= l.window {
			delete(l.counts, k)
		}
	}
}
