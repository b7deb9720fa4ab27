package platform

import (
	"testing"
	"time"
)

func TestSenderRateLimiterAllowsFirstMessage(t *testing.T) {
	r := newSenderRateLimiter(3 * time.Second)
	if !r.Allow("discord:u1", time.Now()) {
		t.Fatal("first message from a new key should be allowed")
	}
}

func TestSenderRateLimiterRejectsWithinWindow(t *testing.T) {
	r := newSenderRateLimiter(3 * time.Second)
	now := time.Now()
	r.Allow("discord:u1", now)
	if r.Allow("discord:u1", now.Add(2*time.Second)) {
		t.Fatal("message within the rate-limit window should be rejected")
	}
}

func TestSenderRateLimiterAllowsAfterWindow(t *testing.T) {
	r := newSenderRateLimiter(3 * time.Second)
	now := time.Now()
	r.Allow("discord:u1", now)
	if !r.Allow("discord:u1", now.Add(4*time.Second)) {
		t.Fatal("message after the rate-limit window should be allowed")
	}
}

func TestSenderRateLimiterIsPerKey(t *testing.T) {
	r := newSenderRateLimiter(3 * time.Second)
	now := time.Now()
	r.Allow("discord:u1", now)
	if !r.Allow("discord:u2", now) {
		t.Fatal("a different key should not be affected by another key's rate limit")
	}
}
