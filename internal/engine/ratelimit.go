package engine

import (
	"strings"
	"sync"
	"time"
)

// RateLimiter is a per-(caller, match) minimum-interval gate. A call is
// rejected outright if the previous accepted call for the same key is
// closer than the configured interval; rejected calls are not queued.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[string]int64
	now      func() int64
}

// NewRateLimiter creates a rate limiter with the given minimum interval.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		interval: interval,
		last:     make(map[string]int64),
		now:      func() int64 { return time.Now().UnixMilli() },
	}
}

func rateLimitKey(matchID, caller string) string {
	return matchID + ":" + caller
}

// Allow records and accepts the call unless the caller's previous accepted
// call for this match is within the minimum interval.
func (l *RateLimiter) Allow(matchID, caller string) bool {
	key := rateLimitKey(matchID, caller)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.last[key]; ok && now-last < l.interval.Milliseconds() {
		return false
	}
	l.last[key] = now
	return true
}

// Purge drops all entries belonging to a match. Called when the match is
// deleted so the map stays bounded.
func (l *RateLimiter) Purge(matchID string) {
	prefix := matchID + ":"

	l.mu.Lock()
	defer l.mu.Unlock()

	for key := range l.last {
		if strings.HasPrefix(key, prefix) {
			delete(l.last, key)
		}
	}
}
