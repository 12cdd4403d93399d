package web

import (
	"testing"
	"time"
)

func TestTokenBucket_Allow(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		requests int
		want     int // number of requests that should succeed
	}{
		{"all requests allowed", 10, 5, 5},
		{"some requests denied", 3, 5, 3},
		{"exactly at capacity", 5, 5, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Now()
			tb := newTokenBucket(tt.capacity, now)

			allowed := 0
			for i := 0; i < tt.requests; i++ {
				if tb.allow(now) {
					allowed++
				}
			}

			if allowed != tt.want {
				t.Errorf("allowed %d requests, want %d", allowed, tt.want)
			}
		})
	}
}

func TestTokenBucket_Refill(t *testing.T) {
	now := time.Now()
	tb := newTokenBucket(6, now)

	for i := 0; i < 6; i++ {
		if !tb.allow(now) {
			t.Fatalf("expected request %d to be allowed", i)
		}
	}
	if tb.allow(now) {
		t.Fatal("expected bucket to be empty")
	}

	// A third of a minute refills a third of the capacity.
	if !tb.allow(now.Add(20 * time.Second)) {
		t.Error("expected a token after partial refill")
	}

	// Refill never exceeds capacity.
	later := now.Add(time.Hour)
	allowed := 0
	for i := 0; i < 10; i++ {
		if tb.allow(later) {
			allowed++
		}
	}
	if allowed != 6 {
		t.Errorf("allowed %d after full refill, want 6", allowed)
	}
}

func TestRateLimiter_PerSession(t *testing.T) {
	rl := newRateLimiter(2)

	if !rl.allowChat("a") || !rl.allowChat("a") {
		t.Fatal("first two requests for a should be allowed")
	}
	if rl.allowChat("a") {
		t.Error("third request for a should be limited")
	}
	if !rl.allowChat("b") {
		t.Error("session b should have its own bucket")
	}
}

func TestRateLimiter_CleanupStale(t *testing.T) {
	now := time.Now()
	rl := newRateLimiter(5)
	rl.now = func() time.Time { return now }

	rl.allowChat("old")
	now = now.Add(20 * time.Minute)
	rl.allowChat("recent")
	now = now.Add(15 * time.Minute)

	rl.cleanupStale(maxSessionAge)

	if rl.size() != 1 {
		t.Fatalf("size() = %d, want 1", rl.size())
	}
	rl.mu.Lock()
	_, ok := rl.buckets["recent"]
	rl.mu.Unlock()
	if !ok {
		t.Error("recent session should be kept")
	}
}

