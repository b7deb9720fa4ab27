package platform

import (
	"sync"
	"time"
)

// senderRateLimiter enforces a minimum gap between allowed messages from
// the same (platform, from) pair. It is a single-token bucket per key:
// one token, refilled after window has elapsed since the last allow.
type senderRateLimiter struct {
	window time.Duration

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func newSenderRateLimiter(window time.Duration) *senderRateLimiter {
	return &senderRateLimiter{window: window, lastSeen: make(map[string]time.Time)}
}

// Allow reports whether key may proceed now. Only allowed attempts are
// recorded; a rejected attempt does not move the window.
func (r *senderRateLimiter) Allow(key string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	last, ok := r.lastSeen[key]
	if ok && now.Sub(last) < r.window {
		return false
	}
	r.lastSeen[key] = now
	return true
}

func rateLimitKey(platform, from string) string {
	return platform + ":" + from
}
