package runtime

import (
	"sync"
	"time"
)

// MonotonicClock hands out strictly increasing UTC timestamps, even when
// the wall clock stalls or steps back.
type MonotonicClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{now: time.Now}
}

func (c *MonotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Round(0)
	if !t.After(c.last) {
		t = c.last.Add(time.Nanosecond)
	}
	c.last = t
	return t
}
