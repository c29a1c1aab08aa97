package inference

import "context"

// Engine runs one inference call. promptContext is the short header describing the
// current time, price and trigger; the engine adds its own prompts around it.
type Engine interface {
	Name() string
	Invoke(ctx context.Context, promptContext string) (string, error)
}

// Observer receives run statistics. Implementations must be safe for concurrent use.
type Observer interface {
	InferenceSkipped(reason string)
	InferenceFinished(outcome string, seconds float64)
}

type nopObserver struct{}

func (nopObserver) InferenceSkipped(string)           {}
func (nopObserver) InferenceFinished(string, float64) {}
