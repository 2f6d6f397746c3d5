package store

import (
	"sync"
	"time"
)

// KeyClock issues strictly increasing document keys.
// Two receipts that land in the same microsecond (or a wall clock stepping
// backwards) would otherwise format to the same key and overwrite each other.
type KeyClock struct {
	mu   sync.Mutex
	last time.Time
}

// Next returns the key for a record received at t
func (c *KeyClock) Next(t time.Time) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	t = t.Truncate(time.Microsecond)
	if !c.last.IsZero() && !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t

	return Key(t)
}
