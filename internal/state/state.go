package state

import (
	"sync"
	"time"

	"tradewatch/internal/market"
	"tradewatch/internal/tradesetup"
)

const (
	defaultIntervalSeconds = 120
	initialOutput          = "Daemon initializing..."
)

// State is the daemon's shared mutable state. Components receive it at construction
// and only touch it through these methods; each method holds the lock for its
// whole duration and never performs I/O while holding it.
type State struct {
	mu sync.Mutex

	running               bool
	interval              int
	autoInferenceInterval int
	lastPrice             float64
	lastOutput            string
	lastUpdated           *time.Time
	inference             InferenceRecord
	analysis              *AnalysisSummary

	setups *tradesetup.Registry
	nowFn  func() time.Time
}

type Option func(*State)

func WithClock(now func() time.Time) Option {
	return func(s *State) {
		if now != nil {
			s.nowFn = now
		}
	}
}

func WithInterval(seconds int) Option {
	return func(s *State) {
		if seconds > 0 {
			s.interval = seconds
		}
	}
}

func WithAutoInferenceInterval(seconds int) Option {
	return func(s *State) {
		if seconds > 0 {
			s.autoInferenceInterval = seconds
		}
	}
}

// New builds a stopped daemon state around registry. A nil registry gets a default one.
func New(registry *tradesetup.Registry, opts ...Option) *State {
	if registry == nil {
		registry = tradesetup.NewRegistry()
	}
	s := &State{
		interval:   defaultIntervalSeconds,
		lastOutput: initialOutput,
		inference:  InferenceRecord{Status: InferenceNone},
		setups:     registry,
		nowFn:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Setups exposes the registry owned by this state.
func (s *State) Setups() *tradesetup.Registry {
	return s.setups
}

func (s *State) now() time.Time {
	return s.nowFn().In(market.Location())
}

func (s *State) SetRunning(running bool) {
	s.mu.Lock()
	s.running = running
	s.mu.Unlock()
}

func (s *State) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SetInterval stores the polling interval shown to operators; non-positive values are ignored.
func (s *State) SetInterval(seconds int) {
	if seconds <= 0 {
		return
	}
	s.mu.Lock()
	s.interval = seconds
	s.mu.Unlock()
}

func (s *State) Interval() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetAutoInferenceInterval sets the scheduled inference period; zero disables it.
func (s *State) SetAutoInferenceInterval(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	s.mu.Lock()
	s.autoInferenceInterval = seconds
	s.mu.Unlock()
}

func (s *State) AutoInferenceInterval() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoInferenceInterval
}

func (s *State) SetLastPrice(price float64) {
	s.mu.Lock()
	s.lastPrice = price
	s.mu.Unlock()
}

func (s *State) LastPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPrice
}

// UpdateOutput replaces the operator-facing status text and stamps LastUpdated.
func (s *State) UpdateOutput(text string) {
	s.mu.Lock()
	now := s.now()
	s.lastOutput = text
	s.lastUpdated = &now
	s.mu.Unlock()
}

// TryStartInference atomically checks that no inference is running and that the
// cooldown since the last completion has elapsed, then installs a fresh RUNNING
// record. Nothing changes unless the outcome is Started.
func (s *State) TryStartInference(req StartRequest) StartOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inference.Status == InferenceRunning {
		return AlreadyRunning
	}
	now := s.now()
	if req.Cooldown > 0 && s.inference.CompletedAt != nil {
		if now.Sub(*s.inference.CompletedAt) < req.Cooldown {
			return CoolingDown
		}
	}
	s.inference = InferenceRecord{
		ID:        req.ID,
		Status:    InferenceRunning,
		Reason:    req.Reason,
		Context:   req.Context,
		StartedAt: &now,
	}
	return Started
}

// CompleteInference marks the running record COMPLETE with result.
func (s *State) CompleteInference(result string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inference.Status != InferenceRunning {
		return false
	}
	now := s.now()
	s.inference.Status = InferenceComplete
	s.inference.Result = result
	s.inference.CompletedAt = &now
	s.lastOutput = result
	s.lastUpdated = &now
	return true
}

// FailInference marks the running record ERROR with a human-readable message.
func (s *State) FailInference(message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inference.Status != InferenceRunning {
		return false
	}
	now := s.now()
	s.inference.Status = InferenceError
	s.inference.Error = message
	s.inference.CompletedAt = &now
	return true
}

func (s *State) IsInferenceRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inference.Status == InferenceRunning
}

// CooldownRemaining reports how long until cooldown expires; zero means none is active.
func (s *State) CooldownRemaining(cooldown time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cooldown <= 0 || s.inference.CompletedAt == nil {
		return 0
	}
	left := cooldown - s.now().Sub(*s.inference.CompletedAt)
	if left < 0 {
		return 0
	}
	return left
}

func (s *State) SetAnalysis(summary AnalysisSummary) {
	s.mu.Lock()
	s.analysis = &summary
	s.mu.Unlock()
}

// InferenceSnapshot returns a copy of the current inference record.
func (s *State) InferenceSnapshot() InferenceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inference.clone()
}

// Snapshot is the read-only view handed to the presentation layer.
type Snapshot struct {
	Running               bool                    `json:"running"`
	Interval              int                     `json:"interval"`
	AutoInferenceInterval int                     `json:"auto_inference_interval"`
	LastPrice             float64                 `json:"last_price"`
	LastOutput            string                  `json:"last_output"`
	LastUpdated           string                  `json:"last_updated,omitempty"`
	Inference             InferenceRecord         `json:"inference"`
	Analysis              *AnalysisSummary        `json:"analysis,omitempty"`
	ActiveSetups          []tradesetup.TradeSetup `json:"active_setups"`
}

// Snapshot copies every field; the setups list is read from the registry after the
// state lock is released.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Running:               s.running,
		Interval:              s.interval,
		AutoInferenceInterval: s.autoInferenceInterval,
		LastPrice:             s.lastPrice,
		LastOutput:            s.lastOutput,
		Inference:             s.inference.clone(),
	}
	if s.lastUpdated != nil {
		snap.LastUpdated = s.lastUpdated.Format("2006-01-02 15:04:05 MST")
	}
	if s.analysis != nil {
		a := *s.analysis
		snap.Analysis = &a
	}
	s.mu.Unlock()
	snap.ActiveSetups = s.setups.ActiveSetups()
	return snap
}
