package tradesetup

import (
	"sort"
	"strings"
	"sync"
	"time"

	"tradewatch/internal/logger"
)

// TransitionListener is called with the transitions of one operation, outside the
// registry lock.
type TransitionListener func([]Transition)

// Registry owns every stored setup. All access goes through its methods.
type Registry struct {
	mu        sync.RWMutex
	setups    map[string]*TradeSetup
	band      float64
	nowFn     func() time.Time
	listeners []TransitionListener
}

type Option func(*Registry)

// WithClock overrides time.Now, used for CreatedAt defaults and pruning.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.nowFn = now
		}
	}
}

// WithProximity sets the CLOSE_TO_ENTRY band in price points.
func WithProximity(band float64) Option {
	return func(r *Registry) {
		if band > 0 {
			r.band = band
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		setups: make(map[string]*TradeSetup),
		band:   DefaultProximity,
		nowFn:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnTransition registers a listener for status changes.
func (r *Registry) OnTransition(fn TransitionListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// AddSetups merges incoming setups and returns how many were stored. A stored setup
// that is TRADING, PROFIT or STOP_LOSS keeps its plan; any other status is replaced.
func (r *Registry) AddSetups(incoming []TradeSetup) int {
	if len(incoming) == 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.nowFn()
	added := 0
	for _, in := range incoming {
		id := strings.TrimSpace(in.ID)
		if id == "" {
			logger.Warnf("tradesetup: skip setup without id symbol=%s", in.Symbol)
			continue
		}
		if existing, ok := r.setups[id]; ok && existing.Status.Locked() {
			logger.Infof("tradesetup: keep active setup %s (%s), discard re-analysis", id, existing.Status)
			continue
		}
		s := in.Clone()
		s.ID = id
		if s.Status == "" {
			s.Status = StatusNew
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		r.setups[id] = &s
		added++
		logger.Infof("tradesetup: added %s (%s @ %.2f)", id, s.Direction, s.Entry.Price)
	}
	return added
}

// UpdateSetups advances every setup against price and returns what changed.
func (r *Registry) UpdateSetups(price float64) []Transition {
	if !ValidPrice(price) {
		logger.Warnf("tradesetup: ignoring invalid price %v", price)
		return nil
	}
	r.mu.Lock()
	now := r.nowFn()
	var changed []Transition
	for _, s := range r.setups {
		next := Advance(*s, price, r.band)
		if next == s.Status {
			continue
		}
		changed = append(changed, Transition{
			ID:        s.ID,
			Symbol:    s.Symbol,
			Direction: s.Direction,
			From:      s.Status,
			To:        next,
			Price:     price,
			At:        now,
		})
		s.Status = next
	}
	listeners := append([]TransitionListener(nil), r.listeners...)
	r.mu.Unlock()

	sortTransitions(changed)
	for _, tr := range changed {
		logger.Infof("tradesetup: %s %s -> %s at %.2f", tr.ID, tr.From, tr.To, tr.Price)
	}
	r.notify(listeners, changed)
	return changed
}

// Cancel moves a setup that has not been filled to CANCELED.
func (r *Registry) Cancel(id string) (Transition, bool) {
	id = strings.TrimSpace(id)
	r.mu.Lock()
	s, ok := r.setups[id]
	if !ok || s.Status.Terminal() || s.Status == StatusTrading {
		r.mu.Unlock()
		return Transition{}, false
	}
	tr := Transition{
		ID:        s.ID,
		Symbol:    s.Symbol,
		Direction: s.Direction,
		From:      s.Status,
		To:        StatusCanceled,
		At:        r.nowFn(),
	}
	s.Status = StatusCanceled
	listeners := append([]TransitionListener(nil), r.listeners...)
	r.mu.Unlock()

	logger.Infof("tradesetup: %s canceled (was %s)", tr.ID, tr.From)
	r.notify(listeners, []Transition{tr})
	return tr, true
}

// PruneBacklog drops setups older than maxAge regardless of status.
func (r *Registry) PruneBacklog(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.nowFn()
	removed := 0
	for id, s := range r.setups {
		if now.Sub(s.CreatedAt) > maxAge {
			delete(r.setups, id)
			removed++
			logger.Infof("tradesetup: pruned %s (%s): age > %s", id, s.Status, maxAge)
		}
	}
	return removed
}

// ActiveSetups returns copies of every stored setup, newest first.
func (r *Registry) ActiveSetups() []TradeSetup {
	r.mu.RLock()
	out := make([]TradeSetup, 0, len(r.setups))
	for _, s := range r.setups {
		out = append(out, s.Clone())
	}
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *Registry) Get(id string) (TradeSetup, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.setups[strings.TrimSpace(id)]
	if !ok {
		return TradeSetup{}, false
	}
	return s.Clone(), true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.setups)
}

func (r *Registry) notify(listeners []TransitionListener, changed []Transition) {
	if len(changed) == 0 {
		return
	}
	for _, fn := range listeners {
		func() {
			defer safeRecover("tradesetup listener")
			fn(append([]Transition(nil), changed...))
		}()
	}
}

func sortTransitions(ts []Transition) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].ID < ts[j].ID })
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}
