package state

import "time"

// InferenceStatus is the lifecycle of one inference attempt.
type InferenceStatus string

const (
	InferenceNone     InferenceStatus = "NONE"
	InferenceRunning  InferenceStatus = "RUNNING"
	InferenceComplete InferenceStatus = "COMPLETE"
	InferenceError    InferenceStatus = "ERROR"
)

// InferenceRecord describes the current (or last) inference attempt. A new record
// replaces the previous one each time a run starts.
type InferenceRecord struct {
	ID          string          `json:"id,omitempty"`
	Status      InferenceStatus `json:"status"`
	Reason      string          `json:"reason,omitempty"`
	Result      string          `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	Context     string          `json:"context,omitempty"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

func (r InferenceRecord) clone() InferenceRecord {
	out := r
	if r.StartedAt != nil {
		t := *r.StartedAt
		out.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// StartOutcome is the answer of TryStartInference.
type StartOutcome int

const (
	Started StartOutcome = iota
	AlreadyRunning
	CoolingDown
)

func (o StartOutcome) String() string {
	switch o {
	case Started:
		return "started"
	case AlreadyRunning:
		return "already_running"
	case CoolingDown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// StartRequest carries what a fresh RUNNING record is created from.
type StartRequest struct {
	ID       string
	Reason   string
	Context  string
	Cooldown time.Duration // zero disables the cooldown check
}

// AnalysisSummary keeps the descriptive part of the last parsed engine output.
type AnalysisSummary struct {
	InferenceTime  string    `json:"inference_time,omitempty"`
	InferencePrice float64   `json:"inference_price,omitempty"`
	MarketOverview string    `json:"market_overview,omitempty"`
	SetupCount     int       `json:"setup_count"`
	ParsedAt       time.Time `json:"parsed_at"`
}
