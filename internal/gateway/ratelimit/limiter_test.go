package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests walk the window forward deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter() (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	l := New()
	l.now = clock.Now
	return l, clock
}

func TestAllowUpToLimit(t *testing.T) {
	l, _ := newTestLimiter()

	for i := 0; i < 5; i++ {
		ok, remaining := l.Allow("k1", 5)
		assert.True(t, ok, "request %d should be admitted", i+1)
		assert.Equal(t, 4-i, remaining)
	}

	ok, remaining := l.Allow("k1", 5)
	assert.False(t, ok, "sixth request within the window should be rejected")
	assert.Equal(t, 0, remaining)
}

func TestWindowSlides(t *testing.T) {
	l, clock := newTestLimiter()

	// Two requests 30s apart fill a limit of 2.
	ok, _ := l.Allow("k1", 2)
	assert.True(t, ok)
	clock.Advance(30 * time.Second)
	ok, _ = l.Allow("k1", 2)
	assert.True(t, ok)

	ok, _ = l.Allow("k1", 2)
	assert.False(t, ok)

	// 31s later the first request has aged out but the second has not,
	// so exactly one slot opens. A fixed window would have reset both.
	clock.Advance(31 * time.Second)
	ok, _ = l.Allow("k1", 2)
	assert.True(t, ok)
	ok, _ = l.Allow("k1", 2)
	assert.False(t, ok, "second request is still inside the trailing window")
}

func TestNoDoubleAdmissionAtSeam(t *testing.T) {
	l, clock := newTestLimiter()

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("k1", 3)
		assert.True(t, ok)
	}

	// Just before the window edge nothing has expired.
	clock.Advance(59 * time.Second)
	ok, _ := l.Allow("k1", 3)
	assert.False(t, ok)

	// Just past it, all three expire together.
	clock.Advance(2 * time.Second)
	ok, _ = l.Allow("k1", 3)
	assert.True(t, ok)
}

func TestRejectionDoesNotConsume(t *testing.T) {
	l, clock := newTestLimiter()

	ok, _ := l.Allow("k1", 1)
	assert.True(t, ok)

	// Rejected attempts must not extend the window.
	for i := 0; i < 10; i++ {
		clock.Advance(5 * time.Second)
		ok, _ = l.Allow("k1", 1)
		assert.False(t, ok)
	}

	clock.Advance(15 * time.Second) // 65s after the only admitted call
	ok, _ = l.Allow("k1", 1)
	assert.True(t, ok)
}

func TestZeroLimitAlwaysRejects(t *testing.T) {
	l, _ := newTestLimiter()

	ok, remaining := l.Allow("k1", 0)
	assert.False(t, ok)
	assert.Equal(t, 0, remaining)

	ok, _ = l.Allow("k1", -1)
	assert.False(t, ok)
}

func TestKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter()

	ok, _ := l.Allow("k1", 1)
	assert.True(t, ok)
	ok, _ = l.Allow("k1", 1)
	assert.False(t, ok)

	ok, _ = l.Allow("k2", 1)
	assert.True(t, ok, "a saturated key must not affect other keys")
}

func TestConcurrentAdmissionRespectsLimit(t *testing.T) {
	l := New() // real clock: all calls land inside one window

	const (
		workers  = 8
		attempts = 50
		limit    = 100
	)

	var (
		wg       sync.WaitGroup
		admitted int64
		mu       sync.Mutex
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", w%2)
			for i := 0; i < attempts; i++ {
				if ok, _ := l.Allow(key, limit); ok {
					mu.Lock()
					admitted++
					mu.Unlock()
				}
			}
		}(w)
	}
	wg.Wait()

	// Two distinct keys, each capped at limit.
	assert.Equal(t, int64(2*limit), admitted)
}
