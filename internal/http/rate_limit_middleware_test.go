package httpx

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

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

func TestMemoryRateLimiterFixedWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	rl := newMemoryRateLimiter(clock.Now)
	t.Cleanup(rl.Close)

	for i := 1; i <= 3; i++ {
		d := rl.Allow("ip:10.0.0.1", 3, time.Minute)
		assert.True(t, d.allowed, "request %d", i)
		assert.Equal(t, i, d.count)
	}
	blocked := rl.Allow("ip:10.0.0.1", 3, time.Minute)
	assert.False(t, blocked.allowed)
	assert.Equal(t, clock.now.Add(time.Minute), blocked.windowEnd)

	assert.True(t, rl.Allow("ip:10.0.0.2", 3, time.Minute).allowed)

	clock.Advance(time.Minute + time.Second)
	d := rl.Allow("ip:10.0.0.1", 3, time.Minute)
	assert.True(t, d.allowed)
	assert.Equal(t, 1, d.count)
}

func TestMemoryRateLimiterCleanup(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	rl := newMemoryRateLimiter(clock.Now)
	t.Cleanup(rl.Close)

	rl.Allow("a", 5, time.Second)
	rl.Allow("b", 5, time.Hour)
	rl.cleanup(clock.now.Add(2 * time.Second))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.entries, "a")
	assert.Contains(t, rl.entries, "b")
}

func TestMemoryRateLimiterDisabled(t *testing.T) {
	rl := newMemoryRateLimiter(time.Now)
	t.Cleanup(rl.Close)
	for i := 0; i < 10; i++ {
		assert.True(t, rl.Allow("k", 0, time.Minute).allowed)
	}
}

func TestRateLimitKeyIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "198.51.100.7:5555"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	assert.Equal(t, "ip:198.51.100.7", rateLimitKeyIP(req))

	req.RemoteAddr = ""
	assert.Equal(t, "ip:unknown", rateLimitKeyIP(req))
}
