package service

import (
	"sync"
	"time"
)

// Clock assigns ingestion timestamps. Successive readings never go backwards and differ by at
// least a microsecond, the storage precision, even if the wall clock steps back.
type Clock struct {
	mu   sync.Mutex
	last time.Time
	wall func() time.Time
}

// NewClock returns a Clock reading wall; nil means time.Now.
func NewClock(wall func() time.Time) *Clock {
	if wall == nil {
		wall = time.Now
	}
	return &Clock{wall: wall}
}

// Next returns the next timestamp in UTC, truncated to microseconds.
func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.wall().UTC().Truncate(time.Microsecond)
	if !c.last.IsZero() && !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}
