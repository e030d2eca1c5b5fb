package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(interval time.Duration) (*RateLimiter, *int64) {
	clock := int64(1_000_000)
	l := NewRateLimiter(interval)
	l.now = func() int64 { return clock }
	return l, &clock
}

func TestRateLimiterRejectsWithinInterval(t *testing.T) {
	l, clock := newTestLimiter(300 * time.Millisecond)

	assert.True(t, l.Allow("m1", "u1"))
	assert.False(t, l.Allow("m1", "u1"))

	*clock += 299
	assert.False(t, l.Allow("m1", "u1"))

	*clock += 1
	assert.True(t, l.Allow("m1", "u1"))
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(300 * time.Millisecond)

	assert.True(t, l.Allow("m1", "u1"))
	assert.True(t, l.Allow("m1", "u2"), "different caller, same match")
	assert.True(t, l.Allow("m2", "u1"), "same caller, different match")
}

func TestRateLimiterRejectedCallDoesNotResetWindow(t *testing.T) {
	l, clock := newTestLimiter(300 * time.Millisecond)

	assert.True(t, l.Allow("m1", "u1"))
	*clock += 200
	assert.False(t, l.Allow("m1", "u1"))
	// Window still measured from the accepted call.
	*clock += 100
	assert.True(t, l.Allow("m1", "u1"))
}

func TestRateLimiterPurge(t *testing.T) {
	l, _ := newTestLimiter(300 * time.Millisecond)

	assert.True(t, l.Allow("m1", "u1"))
	assert.True(t, l.Allow("m1", "u2"))
	assert.True(t, l.Allow("m2", "u1"))

	l.Purge("m1")

	// m1 entries are gone, m2 untouched.
	assert.True(t, l.Allow("m1", "u1"))
	assert.True(t, l.Allow("m1", "u2"))
	assert.False(t, l.Allow("m2", "u1"))
}
