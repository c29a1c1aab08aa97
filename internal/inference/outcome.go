package inference

// Outcome is what a call to RunInference or TriggerManualInference decided. Every
// value except OutcomeStarted is a no-op.
type Outcome string

const (
	OutcomeStarted        Outcome = "started"
	OutcomeNotRunning     Outcome = "daemon_stopped"
	OutcomeAutoDisabled   Outcome = "auto_disabled"
	OutcomeMarketClosed   Outcome = "market_closed"
	OutcomeAlreadyRunning Outcome = "already_running"
	OutcomeCoolingDown    Outcome = "cooldown"
	OutcomeCanceled       Outcome = "canceled"
)

func (o Outcome) Started() bool { return o == OutcomeStarted }

// Run results reported to the Observer.
const (
	resultComplete   = "complete"
	resultParseError = "parse_error"
	resultError      = "error"
	resultTimeout    = "timeout"
)
