package ratelimit_test

import (
	"sync"
	"time"
)

// testClock is a manually advanced clock shared by limiter and store.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(ms int64) *testClock {
	return &testClock{now: time.UnixMilli(ms)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *testClock) Set(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = time.UnixMilli(ms)
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}
