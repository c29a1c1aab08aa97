package scheduler

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"tradewatch/internal/logger"
)

// Step wraps one unit of loop work. A failing or panicking step is paused for an
// exponentially growing backoff so a persistent fault does not spin the loop.
type Step struct {
	Name      string
	BaseDelay time.Duration
	MaxDelay  time.Duration

	mu       sync.Mutex
	failures int
	until    time.Time
}

func NewStep(name string, base, max time.Duration) *Step {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	return &Step{Name: name, BaseDelay: base, MaxDelay: max}
}

// Run calls fn unless the step is backing off. The returned error is whatever fn
// returned, or the recovered panic.
func (s *Step) Run(now time.Time, fn func() error) (ran bool, err error) {
	s.mu.Lock()
	if now.Before(s.until) {
		s.mu.Unlock()
		return false, nil
	}
	s.mu.Unlock()

	err = safeCall(s.Name, fn)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.failures = 0
		s.until = time.Time{}
		return true, nil
	}
	s.failures++
	delay := s.BaseDelay << (s.failures - 1)
	if delay > s.MaxDelay || delay <= 0 {
		delay = s.MaxDelay
	}
	s.until = now.Add(delay)
	logger.Errorf("step %s failed (attempt %d, backoff %s): %v", s.Name, s.failures, delay, err)
	return true, err
}

func (s *Step) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

func safeCall(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("step %s panic: %v\n%s", name, r, debug.Stack())
			err = fmt.Errorf("panic in %s: %v", name, r)
		}
	}()
	return fn()
}
