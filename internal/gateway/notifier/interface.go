package notifier

import "context"

// TextNotifier is the minimal outbound channel used by alerting code.
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}
