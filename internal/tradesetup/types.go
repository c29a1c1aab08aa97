package tradesetup

import (
	"strings"
	"time"
)

// Status is the lifecycle position of a setup.
type Status string

const (
	StatusNew          Status = "NEW"
	StatusMonitoring   Status = "MONITORING"
	StatusCloseToEntry Status = "CLOSE_TO_ENTRY"
	StatusTrading      Status = "TRADING"
	StatusProfit       Status = "PROFIT"
	StatusStopLoss     Status = "STOP_LOSS"
	StatusCanceled     Status = "CANCELED"
)

// ParseStatus normalizes s; ok is false for unknown values.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusNew, StatusMonitoring, StatusCloseToEntry, StatusTrading,
		StatusProfit, StatusStopLoss, StatusCanceled:
		return st, true
	}
	return "", false
}

// Terminal reports whether price ticks can no longer move the status.
func (s Status) Terminal() bool {
	return s == StatusProfit || s == StatusStopLoss || s == StatusCanceled
}

// Locked reports whether a newer proposal with the same id must be discarded.
func (s Status) Locked() bool {
	return s == StatusTrading || s == StatusProfit || s == StatusStopLoss
}

type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToUpper(strings.TrimSpace(s))) {
	case Long:
		return Long, true
	case Short:
		return Short, true
	}
	return "", false
}

type EntryRule struct {
	Type      string  `json:"type"` // limit | market | stop
	Price     float64 `json:"price"`
	Condition string  `json:"condition"`
}

type StopLossRule struct {
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
}

type TargetRule struct {
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
}

// TradeSetup is a proposed trade idea. Entry, StopLoss, Targets, Direction and
// CreatedAt never change once the setup is stored.
type TradeSetup struct {
	ID        string       `json:"id"`
	Symbol    string       `json:"symbol"`
	Direction Direction    `json:"direction"`
	Status    Status       `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	Entry     EntryRule    `json:"entry"`
	StopLoss  StopLossRule `json:"stop_loss"`
	Targets   []TargetRule `json:"targets"`
	RulesText string       `json:"rules_text"`
	Reasoning string       `json:"reasoning,omitempty"`
}

// Clone returns a copy that shares no mutable memory with s.
func (s TradeSetup) Clone() TradeSetup {
	out := s
	if s.Targets != nil {
		out.Targets = append([]TargetRule(nil), s.Targets...)
	}
	return out
}

// Transition records a status change produced by a price tick or an operator action.
type Transition struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	Price     float64   `json:"price,omitempty"`
	At        time.Time `json:"at"`
}
