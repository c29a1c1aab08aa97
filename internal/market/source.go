package market

import (
	"context"
	"fmt"
)

// PriceRelation describes where the last price sits relative to one trendline.
type PriceRelation struct {
	Type      string  `json:"type"`      // support | resistance
	Proximity string  `json:"proximity"` // at | near | far | ...
	Distance  float64 `json:"distance"`
}

// Near reports whether the relation is close enough to act on.
func (r PriceRelation) Near() bool {
	return r.Proximity == "at" || r.Proximity == "near"
}

// TrendlineFrame is the per-timeframe part of a trendline response.
type TrendlineFrame struct {
	Label          string
	PriceRelations []PriceRelation
}

// Trendlines maps a timeframe label such as "5min" to its frame.
type Trendlines map[string]TrendlineFrame

// TimeframeLabel renders minutes the way the data service keys its response.
func TimeframeLabel(minutes int) string {
	return fmt.Sprintf("%dmin", minutes)
}

// Source is the market data the daemon consumes.
type Source interface {
	// LatestPrice returns the last close, or 0 when nothing usable came back.
	LatestPrice(ctx context.Context, symbol string) (float64, error)
	Trendlines(ctx context.Context, symbol string, timeframeMinutes int) (Trendlines, error)
}
