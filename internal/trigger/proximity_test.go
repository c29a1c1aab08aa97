package trigger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"tradewatch/internal/inference"
	"tradewatch/internal/market"
	"tradewatch/internal/state"
)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) Trendlines(ctx context.Context, symbol string, timeframe int) (market.Trendlines, error) {
	args := m.Called(ctx, symbol, timeframe)
	lines, _ := args.Get(0).(market.Trendlines)
	return lines, args.Error(1)
}

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) RunInference(ctx context.Context, reason string) inference.Outcome {
	args := m.Called(ctx, reason)
	return args.Get(0).(inference.Outcome)
}

func (m *MockRunner) Cooldown() time.Duration { return 180 * time.Second }

func newRunningState() *state.State {
	st := state.New(nil)
	st.SetRunning(true)
	return st
}

func TestBuildReason(t *testing.T) {
	rels := []market.PriceRelation{
		{Type: "support", Proximity: "far", Distance: 12},
		{Type: "support", Proximity: "near", Distance: 1.234},
		{Type: "resistance", Proximity: "at", Distance: 0},
		{Type: "resistance", Proximity: "near", Distance: 2},
	}
	assert.Equal(t,
		"Price near Trendline: Support Trendline (near, dist=1.23); Resistance Trendline (at, dist=0.00)",
		BuildReason(rels))
	assert.Empty(t, BuildReason(rels[:1]))
	assert.Empty(t, BuildReason(nil))
}

func TestCheckProximityTriggerFires(t *testing.T) {
	st := newRunningState()
	src := &MockSource{}
	runner := &MockRunner{}
	src.On("Trendlines", mock.Anything, "@ES", 5).Return(market.Trendlines{
		"5min": {Label: "5min", PriceRelations: []market.PriceRelation{{Type: "support", Proximity: "at", Distance: 0.5}}},
	}, nil).Once()
	runner.On("RunInference", mock.Anything, "Price near Trendline: Support Trendline (at, dist=0.50)").
		Return(inference.OutcomeStarted).Once()

	p := NewProximity(st, src, runner, "@ES", 5)
	assert.Equal(t, inference.OutcomeStarted, p.CheckProximityTrigger(context.Background()))
	src.AssertExpectations(t)
	runner.AssertExpectations(t)
}

func TestCheckProximityTriggerNoops(t *testing.T) {
	t.Run("stopped daemon does not fetch", func(t *testing.T) {
		st := state.New(nil)
		src := &MockSource{}
		p := NewProximity(st, src, &MockRunner{}, "@ES", 5)
		assert.Empty(t, p.CheckProximityTrigger(context.Background()))
		src.AssertNotCalled(t, "Trendlines", mock.Anything, mock.Anything, mock.Anything)
	})
	t.Run("running inference does not fetch", func(t *testing.T) {
		st := newRunningState()
		st.TryStartInference(state.StartRequest{})
		src := &MockSource{}
		p := NewProximity(st, src, &MockRunner{}, "@ES", 5)
		assert.Empty(t, p.CheckProximityTrigger(context.Background()))
		src.AssertNotCalled(t, "Trendlines", mock.Anything, mock.Anything, mock.Anything)
	})
	t.Run("cooldown does not fetch", func(t *testing.T) {
		st := newRunningState()
		st.TryStartInference(state.StartRequest{})
		st.CompleteInference("x")
		src := &MockSource{}
		p := NewProximity(st, src, &MockRunner{}, "@ES", 5)
		assert.Empty(t, p.CheckProximityTrigger(context.Background()))
		src.AssertNotCalled(t, "Trendlines", mock.Anything, mock.Anything, mock.Anything)
	})
	t.Run("fetch error is swallowed", func(t *testing.T) {
		src := &MockSource{}
		src.On("Trendlines", mock.Anything, "@ES", 5).Return(nil, errors.New("connection refused")).Once()
		runner := &MockRunner{}
		p := NewProximity(newRunningState(), src, runner, "@ES", 5)
		assert.Empty(t, p.CheckProximityTrigger(context.Background()))
		runner.AssertNotCalled(t, "RunInference", mock.Anything, mock.Anything)
	})
	t.Run("other timeframe ignored", func(t *testing.T) {
		src := &MockSource{}
		src.On("Trendlines", mock.Anything, "@ES", 5).Return(market.Trendlines{
			"15min": {PriceRelations: []market.PriceRelation{{Type: "support", Proximity: "at"}}},
		}, nil).Once()
		runner := &MockRunner{}
		p := NewProximity(newRunningState(), src, runner, "@ES", 5)
		assert.Empty(t, p.CheckProximityTrigger(context.Background()))
		runner.AssertNotCalled(t, "RunInference", mock.Anything, mock.Anything)
	})
}
