package circuit

import (
	"errors"
	"sync"
	"time"

	"tradewatch/internal/logger"
)

// ErrOpen is returned by Do while the breaker rejects calls.
var ErrOpen = errors.New("circuit open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// Breaker opens after threshold consecutive failures and lets a single probe
// through once cooldown has passed since the last failure.
type Breaker struct {
	mu          sync.Mutex
	name        string
	state       State
	failures    int
	threshold   int
	cooldown    time.Duration
	lastFailure time.Time
	nowFn       func() time.Time
	onChange    func(name string, from, to State)
}

type Option func(*Breaker)

func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.nowFn = now
		}
	}
}

// WithStateChange replaces the default log line emitted on transitions. The handler
// runs synchronously after the breaker lock is released.
func WithStateChange(fn func(name string, from, to State)) Option {
	return func(b *Breaker) { b.onChange = fn }
}

func New(name string, threshold int, cooldown time.Duration, opts ...Option) *Breaker {
	if threshold <= 0 {
		threshold = 1
	}
	b := &Breaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		state:     StateClosed,
		nowFn:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) Allow() bool {
	b.mu.Lock()
	var changed *[2]State
	allowed := true
	if b.state == StateOpen {
		if b.nowFn().Sub(b.lastFailure) >= b.cooldown {
			changed = b.transition(StateHalfOpen)
		} else {
			allowed = false
		}
	}
	b.mu.Unlock()
	b.emit(changed)
	return allowed
}

func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	var changed *[2]State
	if b.state == StateHalfOpen {
		changed = b.transition(StateClosed)
	}
	b.failures = 0
	b.mu.Unlock()
	b.emit(changed)
}

func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	var changed *[2]State
	b.failures++
	b.lastFailure = b.nowFn()
	switch b.state {
	case StateClosed:
		if b.failures >= b.threshold {
			changed = b.transition(StateOpen)
		}
	case StateHalfOpen:
		changed = b.transition(StateOpen)
	}
	b.mu.Unlock()
	b.emit(changed)
}

// Do runs fn when allowed and records its outcome.
func (b *Breaker) Do(fn func() error) error {
	if !b.Allow() {
		return ErrOpen
	}
	if err := fn(); err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) transition(to State) *[2]State {
	from := b.state
	b.state = to
	if from == to {
		return nil
	}
	return &[2]State{from, to}
}

func (b *Breaker) emit(change *[2]State) {
	if change == nil {
		return
	}
	if b.onChange != nil {
		b.onChange(b.name, change[0], change[1])
		return
	}
	logger.Warnf("CircuitBreaker %s state change: %s -> %s (threshold=%d, cooldown=%s)",
		b.name, change[0], change[1], b.threshold, b.cooldown)
}
