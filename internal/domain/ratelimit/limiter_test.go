package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLimiter_Allow(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	l := New(30, 60*time.Second, c.Now)

	t.Run("allows exactly max within the window", func(t *testing.T) {
		for i := 0; i < 30; i++ {
			assert.True(t, l.Allow(1), "request %d", i+1)
			c.Advance(time.Second)
		}
		assert.False(t, l.Allow(1))
	})

	t.Run("other users are independent", func(t *testing.T) {
		assert.True(t, l.Allow(2))
	})

	t.Run("denials are not recorded", func(t *testing.T) {
		// the oldest request was at t=0; now is t=30s
		c.Advance(29 * time.Second)
		assert.False(t, l.Allow(1))
	})

	t.Run("allows again once the oldest ages out", func(t *testing.T) {
		c.Advance(time.Second) // t=60s, request at t=0 leaves the window
		assert.True(t, l.Allow(1))
		assert.False(t, l.Allow(1))

		c.Advance(time.Second) // request at t=1s leaves
		assert.True(t, l.Allow(1))
	})
}

func TestLimiter_Prune(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	l := New(5, time.Minute, c.Now)

	l.Allow(1)
	l.Allow(2)
	c.Advance(30 * time.Second)
	l.Allow(2)

	c.Advance(45 * time.Second)
	assert.Equal(t, 1, l.Prune())

	c.Advance(time.Minute)
	assert.Zero(t, l.Prune())
}

func TestLimiter_Concurrent(t *testing.T) {
	l := New(100, time.Hour, nil)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 250; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow(9) {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 100, allowed.Load())
}

func TestNew_Defaults(t *testing.T) {
	l := New(0, 0, nil)
	assert.Equal(t, DefaultMaxRequests, l.maxRequests)
	assert.Equal(t, DefaultWindow, l.window)
}
