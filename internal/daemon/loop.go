package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradewatch/internal/inference"
	"tradewatch/internal/logger"
	"tradewatch/internal/pkg/circuit"
	"tradewatch/internal/scheduler"
	"tradewatch/internal/state"
	"tradewatch/internal/tradesetup"
)

// Inferencer is the coordinator surface the loop drives.
type Inferencer interface {
	RunInference(ctx context.Context, reason string) inference.Outcome
	Wait()
}

// TriggerChecker evaluates event triggers.
type TriggerChecker interface {
	CheckProximityTrigger(ctx context.Context) inference.Outcome
}

// PriceSource is the price half of the market data provider.
type PriceSource interface {
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}

// PriceObserver is told about every accepted price.
type PriceObserver interface {
	SetLastPrice(float64)
	SetActiveSetups(int)
}

type Settings struct {
	Symbol       string
	Tick         time.Duration
	TriggerEvery time.Duration
	PruneMaxAge  time.Duration
	StepBackoff  time.Duration
	MaxBackoff   time.Duration
}

// Loop is the daemon's heartbeat. On every tick it runs, in order, the scheduled
// inference check, the trigger check and the price update. Each step is isolated:
// a failure is logged and that step alone backs off.
type Loop struct {
	state    *state.State
	infer    Inferencer
	trigger  TriggerChecker
	prices   PriceSource
	breaker  *circuit.Breaker
	observer PriceObserver
	settings Settings
	nowFn    func() time.Time

	auto       *scheduler.Cadence
	triggerDue *scheduler.Cadence
	steps      [3]*scheduler.Step
}

type Option func(*Loop)

func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		if now != nil {
			l.nowFn = now
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(l *Loop) { l.breaker = b }
}

func WithPriceObserver(o PriceObserver) Option {
	return func(l *Loop) { l.observer = o }
}

func New(st *state.State, infer Inferencer, trigger TriggerChecker, prices PriceSource, s Settings, opts ...Option) *Loop {
	if s.Tick <= 0 {
		s.Tick = 5 * time.Second
	}
	if s.TriggerEvery <= 0 {
		s.TriggerEvery = 15 * time.Second
	}
	if s.PruneMaxAge <= 0 {
		s.PruneMaxAge = 30 * time.Minute
	}
	if s.StepBackoff <= 0 {
		s.StepBackoff = s.Tick
	}
	if s.MaxBackoff <= 0 {
		s.MaxBackoff = time.Minute
	}
	l := &Loop{
		state:    st,
		infer:    infer,
		trigger:  trigger,
		prices:   prices,
		settings: s,
		nowFn:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	now := l.nowFn()
	// Scheduled runs wait one full interval after start; the trigger check is due at once.
	l.auto = scheduler.NewCadence(scheduler.EverySeconds(st.AutoInferenceInterval), now)
	l.triggerDue = scheduler.NewCadence(scheduler.Fixed(s.TriggerEvery), time.Time{})
	l.steps = [3]*scheduler.Step{
		scheduler.NewStep("scheduled-inference", s.StepBackoff, s.MaxBackoff),
		scheduler.NewStep("trigger-check", s.StepBackoff, s.MaxBackoff),
		scheduler.NewStep("price-update", s.StepBackoff, s.MaxBackoff),
	}
	return l
}

// Run blocks until ctx is cancelled, then waits for in-flight inference.
func (l *Loop) Run(ctx context.Context) error {
	logger.Infof("daemon loop started: symbol=%s tick=%s trigger_every=%s",
		l.settings.Symbol, l.settings.Tick, l.settings.TriggerEvery)
	ticker := scheduler.NewTickScheduler(ctx, "daemon", l.settings.Tick)
	ticker.RunImmediately = true
	ticker.Start(func(time.Time) { l.Tick(ctx) })
	l.infer.Wait()
	logger.Infof("daemon loop stopped")
	return nil
}

// Tick performs one iteration of the loop.
func (l *Loop) Tick(ctx context.Context) {
	now := l.nowFn()
	l.steps[0].Run(now, func() error { return l.scheduledStep(ctx, now) })
	l.steps[1].Run(now, func() error { return l.triggerStep(ctx, now) })
	l.steps[2].Run(now, func() error { return l.priceStep(ctx) })
}

func (l *Loop) scheduledStep(ctx context.Context, now time.Time) error {
	if !l.state.IsRunning() || !l.auto.Due(now) {
		return nil
	}
	outcome := l.infer.RunInference(ctx, "")
	l.auto.Mark(l.nowFn())
	logger.Debugf("scheduled inference: %s", outcome)
	return nil
}

func (l *Loop) triggerStep(ctx context.Context, now time.Time) error {
	if !l.state.IsRunning() || l.trigger == nil || !l.triggerDue.Due(now) {
		return nil
	}
	l.trigger.CheckProximityTrigger(ctx)
	l.triggerDue.Mark(l.nowFn())
	return nil
}

func (l *Loop) priceStep(ctx context.Context) error {
	if !l.state.IsRunning() || l.prices == nil {
		return nil
	}
	var price float64
	fetch := func() error {
		p, err := l.prices.LatestPrice(ctx, l.settings.Symbol)
		if err != nil {
			return err
		}
		price = p
		return nil
	}
	var err error
	if l.breaker != nil {
		err = l.breaker.Do(fetch)
	} else {
		err = fetch()
	}
	if errors.Is(err, circuit.ErrOpen) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch price: %w", err)
	}
	if !tradesetup.ValidPrice(price) {
		logger.Debugf("daemon: skipping unusable price %v", price)
		return nil
	}

	l.state.SetLastPrice(price)
	registry := l.state.Setups()
	registry.UpdateSetups(price)
	if removed := registry.PruneBacklog(l.settings.PruneMaxAge); removed > 0 {
		logger.Infof("pruned %d setups older than %s", removed, l.settings.PruneMaxAge)
	}
	if l.observer != nil {
		l.observer.SetLastPrice(price)
		l.observer.SetActiveSetups(registry.Len())
	}
	return nil
}
