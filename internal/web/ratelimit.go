package web

import (
	"context"
	"sync"
	"time"
)

const (
	// MaxChatRequestsPerMinute limits chat messages per session.
	MaxChatRequestsPerMinute = 10

	// cleanupInterval is how often to check for stale sessions
	cleanupInterval = 5 * time.Minute

	// maxSessionAge is the maximum idle time before a session is cleaned up
	maxSessionAge = 30 * time.Minute
)

// tokenBucket implements a simple token bucket rate limiter.
type tokenBucket struct {
	capacity   int
	tokens     int
	lastRefill time.Time
	lastAccess time.Time
	mu         sync.Mutex
}

// newTokenBucket creates a full token bucket with the specified capacity.
// Tokens refill at a rate of capacity per minute.
func newTokenBucket(capacity int, now time.Time) *tokenBucket {
	return &tokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		lastRefill: now,
		lastAccess: now,
	}
}

// allow consumes a token if one is available at now.
func (tb *tokenBucket) allow(now time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	elapsed := now.Sub(tb.lastRefill)
	tokensToAdd := int(elapsed.Minutes() * float64(tb.capacity))
	if tokensToAdd > 0 {
		tb.tokens += tokensToAdd
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}

	tb.lastAccess = now

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// rateLimiter tracks chat rate limits per session.
type rateLimiter struct {
	mu       sync.Mutex
	capacity int
	buckets  map[string]*tokenBucket
	now      func() time.Time
}

// newRateLimiter creates a limiter allowing perMinute turns per session.
func newRateLimiter(perMinute int) *rateLimiter {
	return &rateLimiter{
		capacity: perMinute,
		buckets:  make(map[string]*tokenBucket),
		now:      time.Now,
	}
}

// allowChat checks if a chat turn is allowed for the given session.
func (rl *rateLimiter) allowChat(sessionID string) bool {
	now := rl.now()

	rl.mu.Lock()
	bucket, ok := rl.buckets[sessionID]
	if !ok {
		bucket = newTokenBucket(rl.capacity, now)
		rl.buckets[sessionID] = bucket
	}
	rl.mu.Unlock()

	return bucket.allow(now)
}

// size returns the number of tracked sessions.
func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// cleanupStale removes rate limit state for sessions idle longer than maxAge.
func (rl *rateLimiter) cleanupStale(maxAge time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for sessionID, bucket := range rl.buckets {
		bucket.mu.Lock()
		stale := now.Sub(bucket.lastAccess) > maxAge
		bucket.mu.Unlock()
		if stale {
			delete(rl.buckets, sessionID)
		}
	}
}

// startCleanup periodically drops stale buckets until ctx is cancelled.
func (rl *rateLimiter) startCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.cleanupStale(maxSessionAge)
			case <-ctx.Done():
				return
			}
		}
	}()
}
