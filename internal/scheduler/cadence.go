package scheduler

import (
	"sync"
	"time"
)

// Cadence tracks when a periodic step last ran. The period is read on every check so
// it can change at runtime; a non-positive period means the step is disabled.
type Cadence struct {
	mu     sync.Mutex
	period func() time.Duration
	last   time.Time
}

// NewCadence starts counting from start. A zero start makes the first check due.
func NewCadence(period func() time.Duration, start time.Time) *Cadence {
	return &Cadence{period: period, last: start}
}

// EverySeconds adapts an integer seconds getter to a period function.
func EverySeconds(seconds func() int) func() time.Duration {
	return func() time.Duration {
		return time.Duration(seconds()) * time.Second
	}
}

// Fixed returns a constant period.
func Fixed(d time.Duration) func() time.Duration {
	return func() time.Duration { return d }
}

// Due reports whether at least one period has passed since the last Mark.
func (c *Cadence) Due(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	period := c.period()
	if period <= 0 {
		return false
	}
	if c.last.IsZero() {
		return true
	}
	return now.Sub(c.last) >= period
}

// Mark records a run at now.
func (c *Cadence) Mark(now time.Time) {
	c.mu.Lock()
	c.last = now
	c.mu.Unlock()
}
