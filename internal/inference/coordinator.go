package inference

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradewatch/internal/logger"
	"tradewatch/internal/market"
	"tradewatch/internal/pkg/jsonutil"
	"tradewatch/internal/pkg/text"
	"tradewatch/internal/state"
)

const (
	DefaultCooldown = 180 * time.Second
	DefaultTimeout  = 10 * time.Minute
)

// Coordinator decides whether an inference may run and drives it to a terminal
// record. The engine call happens on its own goroutine so callers such as the main
// loop and HTTP handlers never wait on it.
type Coordinator struct {
	state    *state.State
	engine   Engine
	calendar market.Calendar
	observer Observer

	cooldown               time.Duration
	timeout                time.Duration
	manualRespectsCooldown bool

	nowFn func() time.Time
	idFn  func() string

	mu       sync.Mutex
	baseCtx  context.Context
	draining int
	wg       sync.WaitGroup
}

type Option func(*Coordinator)

func WithCooldown(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.cooldown = d
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithManualCooldown makes operator-triggered runs honor the cooldown too.
func WithManualCooldown(enabled bool) Option {
	return func(c *Coordinator) { c.manualRespectsCooldown = enabled }
}

func WithObserver(o Observer) Option {
	return func(c *Coordinator) {
		if o != nil {
			c.observer = o
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.nowFn = now
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.idFn = fn
		}
	}
}

func NewCoordinator(st *state.State, engine Engine, calendar market.Calendar, opts ...Option) *Coordinator {
	if calendar == nil {
		calendar = market.RegularSession()
	}
	c := &Coordinator{
		state:    st,
		engine:   engine,
		calendar: calendar,
		observer: nopObserver{},
		cooldown: DefaultCooldown,
		timeout:  DefaultTimeout,
		nowFn:    time.Now,
		idFn:     uuid.NewString,
		baseCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bind sets the context that in-flight engine calls derive from. Cancelling it
// aborts running calls, which then resolve to ERROR.
func (c *Coordinator) Bind(ctx context.Context) {
	if ctx == nil {
		return
	}
	c.mu.Lock()
	c.baseCtx = ctx
	c.mu.Unlock()
}

func (c *Coordinator) Cooldown() time.Duration { return c.cooldown }

// RunInference is the entry point for scheduled (empty reason) and event-triggered
// runs. Gates are evaluated in order and the first failing one decides the outcome.
func (c *Coordinator) RunInference(ctx context.Context, reason string) Outcome {
	if (ctx != nil && ctx.Err() != nil) || !c.accepting() {
		return OutcomeCanceled
	}
	reason = strings.TrimSpace(reason)
	kind := "auto-inference"
	if reason != "" {
		kind = "trigger"
	}

	if !c.state.IsRunning() {
		return c.skip(OutcomeNotRunning)
	}
	if reason == "" && c.state.AutoInferenceInterval() <= 0 {
		return c.skip(OutcomeAutoDisabled)
	}
	now := c.nowFn()
	if !c.calendar.IsOpen(now) {
		if reason != "" {
			logger.Infof("Ignored trigger '%s', market closed.", reason)
		} else {
			c.state.UpdateOutput(fmt.Sprintf("Waiting for market open... (Last check: %s)",
				now.In(market.Location()).Format("15:04:05")))
		}
		return c.skip(OutcomeMarketClosed)
	}

	promptContext := BuildPromptContext(now, c.state.LastPrice(), reason)
	runID := c.idFn()
	switch c.state.TryStartInference(state.StartRequest{
		ID:       runID,
		Reason:   reason,
		Context:  promptContext,
		Cooldown: c.cooldown,
	}) {
	case state.AlreadyRunning:
		logger.Infof("Inference already running. Skipping %s.", kind)
		return c.skip(OutcomeAlreadyRunning)
	case state.CoolingDown:
		logger.Infof("Skipping %s (cooldown: %s left of %s)",
			kind, c.state.CooldownRemaining(c.cooldown).Round(time.Second), c.cooldown)
		return c.skip(OutcomeCoolingDown)
	}

	if reason != "" {
		logger.Infof("Inference triggered: %s", reason)
	}
	logger.Infof("Starting inference %s (%s)", runID, strings.ReplaceAll(promptContext, "\n", ", "))
	if !c.launch(runID, promptContext) {
		return OutcomeCanceled
	}
	return OutcomeStarted
}

// TriggerManualInference starts a run on operator request. Only single-flight is
// enforced unless the coordinator was built with WithManualCooldown.
func (c *Coordinator) TriggerManualInference(ctx context.Context) Outcome {
	if (ctx != nil && ctx.Err() != nil) || !c.accepting() {
		return OutcomeCanceled
	}
	var cooldown time.Duration
	if c.manualRespectsCooldown {
		cooldown = c.cooldown
	}
	now := c.nowFn()
	promptContext := BuildPromptContext(now, c.state.LastPrice(), "")
	runID := c.idFn()
	switch c.state.TryStartInference(state.StartRequest{ID: runID, Context: promptContext, Cooldown: cooldown}) {
	case state.AlreadyRunning:
		return c.skip(OutcomeAlreadyRunning)
	case state.CoolingDown:
		return c.skip(OutcomeCoolingDown)
	}
	logger.Infof("Starting manual inference %s", runID)
	if !c.launch(runID, promptContext) {
		return OutcomeCanceled
	}
	return OutcomeStarted
}

// Wait blocks until every launched run has reached a terminal record. Runs
// requested while it drains are refused.
func (c *Coordinator) Wait() {
	c.mu.Lock()
	c.draining++
	c.mu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	c.draining--
	c.mu.Unlock()
}

func (c *Coordinator) accepting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draining == 0 && c.baseCtx.Err() == nil
}

func (c *Coordinator) skip(o Outcome) Outcome {
	logger.Debugf("inference skipped: %s", o)
	c.observer.InferenceSkipped(string(o))
	return o
}

// launch reserves the WaitGroup slot under mu so it never races a draining Wait.
// A refused launch still resolves the run that TryStartInference opened.
func (c *Coordinator) launch(runID, promptContext string) bool {
	c.mu.Lock()
	base := c.baseCtx
	if c.draining > 0 || base.Err() != nil {
		c.mu.Unlock()
		c.state.FailInference("inference refused: daemon shutting down")
		logger.Warnf("Inference %s refused: daemon shutting down", runID)
		return false
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.execute(base, runID, promptContext)
	}()
	return true
}

func (c *Coordinator) execute(base context.Context, runID, promptContext string) {
	started := c.nowFn()
	result := resultError
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("inference %s panic: %v\n%s", runID, r, debug.Stack())
			c.state.FailInference(fmt.Sprintf("inference panic: %v", r))
			result = resultError
		}
		c.observer.InferenceFinished(result, c.nowFn().Sub(started).Seconds())
	}()

	if c.engine == nil {
		c.state.FailInference("no inference engine configured")
		return
	}

	ctx, cancel := context.WithTimeout(base, c.timeout)
	defer cancel()

	engineName := c.engine.Name()
	logger.LogInferenceRequest(engineName, runID, promptContext)
	raw, err := c.engine.Invoke(ctx, promptContext)
	logger.LogInferenceResponse(engineName, runID, raw, err)

	var parsed ParsedOutput
	var parseErr error
	if err == nil {
		parsed, parseErr = ParseOutput(raw, c.nowFn())
	}

	if failed, message := Classify(raw, err, err == nil && parseErr == nil); failed {
		if errors.Is(err, context.DeadlineExceeded) {
			result = resultTimeout
		}
		c.state.FailInference(message)
		logger.Errorf("Inference %s failed: %s", runID, text.Truncate(message, 500))
		return
	}

	c.state.CompleteInference(raw)
	if parseErr != nil {
		result = resultParseError
		logger.Errorf("Failed to parse inference JSON (%s): %v", runID, parseErr)
		return
	}

	accepted := c.state.Setups().AddSetups(parsed.Setups)
	parsed.Summary.SetupCount = accepted
	c.state.SetAnalysis(parsed.Summary)
	result = resultComplete
	logger.Infof("Inference %s completed: %d/%d setups accepted (payload from %s)",
		runID, accepted, len(parsed.Setups), parsed.Source)
	logger.Debugf("Inference %s payload:\n%s", runID, jsonutil.Pretty(parsed.Payload))
}
