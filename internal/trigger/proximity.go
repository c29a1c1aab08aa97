package trigger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradewatch/internal/inference"
	"tradewatch/internal/logger"
	"tradewatch/internal/market"
	"tradewatch/internal/state"
)

const (
	DefaultTimeframe = 5
	maxReasons       = 2
)

// Runner is the part of the coordinator the evaluator drives.
type Runner interface {
	RunInference(ctx context.Context, reason string) inference.Outcome
	Cooldown() time.Duration
}

// TrendlineSource fetches trendline relations for a symbol.
type TrendlineSource interface {
	Trendlines(ctx context.Context, symbol string, timeframeMinutes int) (market.Trendlines, error)
}

// Proximity fires an inference when the price sits at or near a trendline.
type Proximity struct {
	state     *state.State
	source    TrendlineSource
	runner    Runner
	symbol    string
	timeframe int
}

func NewProximity(st *state.State, source TrendlineSource, runner Runner, symbol string, timeframe int) *Proximity {
	if timeframe <= 0 {
		timeframe = DefaultTimeframe
	}
	return &Proximity{state: st, source: source, runner: runner, symbol: symbol, timeframe: timeframe}
}

// CheckProximityTrigger performs one evaluation. It returns the outcome of the
// inference request, or an empty outcome when nothing was requested.
func (p *Proximity) CheckProximityTrigger(ctx context.Context) inference.Outcome {
	if !p.state.IsRunning() {
		return ""
	}
	// Skip the fetch entirely when a run could not start anyway.
	if p.state.IsInferenceRunning() || p.state.CooldownRemaining(p.runner.Cooldown()) > 0 {
		return ""
	}

	lines, err := p.source.Trendlines(ctx, p.symbol, p.timeframe)
	if err != nil {
		logger.Debugf("trendline fetch failed: %v", err)
		return ""
	}
	frame, ok := lines[market.TimeframeLabel(p.timeframe)]
	if !ok {
		return ""
	}
	reason := BuildReason(frame.PriceRelations)
	if reason == "" {
		return ""
	}
	return p.runner.RunInference(ctx, reason)
}

// BuildReason renders the first two near relations, or "" when there are none.
func BuildReason(relations []market.PriceRelation) string {
	var parts []string
	for _, rel := range relations {
		if !rel.Near() {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s Trendline (%s, dist=%.2f)", titleCase(rel.Type), rel.Proximity, rel.Distance))
		if len(parts) == maxReasons {
			break
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "Price near Trendline: " + strings.Join(parts, "; ")
}

func titleCase(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
