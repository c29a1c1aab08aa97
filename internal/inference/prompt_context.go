package inference

import (
	"fmt"
	"strings"
	"time"

	"tradewatch/internal/market"
)

// BuildPromptContext renders the header handed to the engine:
//
//	Current Time: 10:42
//	Current Price: 5000.25
//	TRIGGER: Price near Trendline: ...
//
// A non-positive price is rendered as Unknown and the trigger line is omitted for
// scheduled and manual runs.
func BuildPromptContext(now time.Time, price float64, reason string) string {
	var sb strings.Builder
	sb.WriteString("Current Time: ")
	sb.WriteString(now.In(market.Location()).Format("15:04"))
	sb.WriteString("\nCurrent Price: ")
	if price > 0 {
		sb.WriteString(fmt.Sprintf("%.2f", price))
	} else {
		sb.WriteString("Unknown")
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		sb.WriteString("\nTRIGGER: ")
		sb.WriteString(reason)
	}
	return sb.String()
}
