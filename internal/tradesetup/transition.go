package tradesetup

import (
	"math"

	"github.com/shopspring/decimal"
)

// DefaultProximity is the distance from entry, in points, that counts as close.
const DefaultProximity = 3.0

func decFromFloat(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// ValidPrice reports whether p can drive the state machine. A zero, negative or
// non-finite quote is a feed glitch, not a market move.
func ValidPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

func priceLTE(a, b float64) bool { return decFromFloat(a).Cmp(decFromFloat(b)) <= 0 }
func priceGTE(a, b float64) bool { return decFromFloat(a).Cmp(decFromFloat(b)) >= 0 }

func withinBand(price, entry, band float64) bool {
	dist := decFromFloat(price).Sub(decFromFloat(entry)).Abs()
	return dist.Cmp(decFromFloat(band)) <= 0
}

// Advance returns the status s reaches at price. Phases run in a fixed order and
// may cascade within one call (NEW can end as TRADING on the same tick).
func Advance(s TradeSetup, price, band float64) Status {
	st := s.Status
	if st == "" {
		st = StatusNew
	}
	if st.Terminal() || !ValidPrice(price) {
		return st
	}

	if st == StatusNew {
		st = StatusMonitoring
	}

	switch st {
	case StatusMonitoring:
		if withinBand(price, s.Entry.Price, band) {
			st = StatusCloseToEntry
		}
	case StatusCloseToEntry:
		if !withinBand(price, s.Entry.Price, band) {
			st = StatusMonitoring
		}
	}

	if st == StatusMonitoring || st == StatusCloseToEntry {
		if entryFilled(s.Direction, price, s.Entry.Price) {
			st = StatusTrading
		}
	}

	if st == StatusTrading {
		st = resolveTrade(s, price)
	}
	return st
}

// entryFilled simulates a resting limit order touched or crossed by price.
func entryFilled(dir Direction, price, entry float64) bool {
	switch dir {
	case Long:
		return priceLTE(price, entry)
	case Short:
		return priceGTE(price, entry)
	}
	return false
}

// resolveTrade checks the stop before any target so a tick that satisfies both
// closes the trade as a loss.
func resolveTrade(s TradeSetup, price float64) Status {
	switch s.Direction {
	case Long:
		if priceLTE(price, s.StopLoss.Price) {
			return StatusStopLoss
		}
		for _, t := range s.Targets {
			if priceGTE(price, t.Price) {
				return StatusProfit
			}
		}
	case Short:
		if priceGTE(price, s.StopLoss.Price) {
			return StatusStopLoss
		}
		for _, t := range s.Targets {
			if priceLTE(price, t.Price) {
				return StatusProfit
			}
		}
	}
	return StatusTrading
}
