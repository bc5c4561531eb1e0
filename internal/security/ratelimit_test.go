package security

import (
	"fmt"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestRateLimiterAllow(t *testing.T) {
	// 1 request per second, burst of 2
	rl := NewRateLimiter(rate.Limit(1), 2)
	defer rl.Stop()

	user := "111111111111111111"

	// First two should succeed (burst)
	if !rl.Allow(user) {
		t.Error("first request should be allowed")
	}
	if !rl.Allow(user) {
		t.Error("second request (burst) should be allowed")
	}

	// Third should be denied (burst exhausted, no time to replenish)
	if rl.Allow(user) {
		t.Error("third request should be denied (burst exhausted)")
	}
}

func TestRateLimiterPerUser(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(1), 1)
	defer rl.Stop()

	if !rl.Allow("user-a") {
		t.Error("user A first request should be allowed")
	}
	if rl.Allow("user-a") {
		t.Error("user A second request should be denied")
	}

	// user B should still have its own burst
	if !rl.Allow("user-b") {
		t.Error("user B first request should be allowed")
	}
}

func TestRateLimiterUpdateRate(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(1), 1)
	defer rl.Stop()

	rl.Allow("u")

	rl.UpdateRate(rate.Limit(1), 5)

	if !rl.Allow("u") {
		t.Error("should be allowed after rate update")
	}
}

func TestRateLimiterMaxEntries(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(1), 10)
	defer rl.Stop()

	// Override maxEntries to a small value for testing
	rl.mu.Lock()
	rl.maxEntries = 3
	rl.mu.Unlock()

	for i := 0; i < 3; i++ {
		key := fmt.Sprintf("user-%d", i+1)
		if !rl.Allow(key) {
			t.Errorf("%s should be allowed (map not full)", key)
		}
	}

	if rl.Allow("user-100") {
		t.Error("should reject new key when map is at capacity")
	}

	if !rl.Allow("user-1") {
		t.Error("existing key should still be allowed")
	}
}

func TestRateLimiterEvict(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(1), 1)
	defer rl.Stop()

	rl.Allow("stale")
	rl.evict(time.Now().Add(11 * time.Minute))

	rl.mu.Lock()
	n := len(rl.limiters)
	rl.mu.Unlock()
	if n != 0 {
		t.Errorf("entries after evict = %d, want 0", n)
	}
}

func TestPerMinute(t *testing.T) {
	if got := PerMinute(60); got != rate.Limit(1) {
		t.Errorf("PerMinute(60) = %v, want 1", got)
	}
	if got := PerMinute(0); got != rate.Inf {
		t.Errorf("PerMinute(0) = %v, want Inf", got)
	}
}

func TestRateLimiterStop(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(1), 1)
	rl.Stop() // Should not panic or deadlock
}
