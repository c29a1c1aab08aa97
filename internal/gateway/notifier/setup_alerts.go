package notifier

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tradewatch/internal/logger"
	"tradewatch/internal/tradesetup"
)

// SetupLookup resolves a setup id to its current contents.
type SetupLookup func(id string) (tradesetup.TradeSetup, bool)

// SetupAlerter turns registry transitions into chat messages. Sends run on their
// own goroutine so the registry caller never waits on the network.
type SetupAlerter struct {
	notifier TextNotifier
	lookup   SetupLookup
	timeout  time.Duration
	statuses map[tradesetup.Status]bool

	wg sync.WaitGroup
}

// NewSetupAlerter alerts on entries into statuses; an empty list means TRADING,
// PROFIT and STOP_LOSS.
func NewSetupAlerter(n TextNotifier, lookup SetupLookup, statuses []tradesetup.Status) *SetupAlerter {
	if len(statuses) == 0 {
		statuses = []tradesetup.Status{tradesetup.StatusTrading, tradesetup.StatusProfit, tradesetup.StatusStopLoss}
	}
	set := make(map[tradesetup.Status]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}
	return &SetupAlerter{notifier: n, lookup: lookup, timeout: 20 * time.Second, statuses: set}
}

// HandleTransitions matches tradesetup.TransitionListener.
func (a *SetupAlerter) HandleTransitions(ts []tradesetup.Transition) {
	for _, tr := range ts {
		if !a.statuses[tr.To] {
			continue
		}
		msg := a.render(tr)
		a.wg.Add(1)
		go func(id string, body string) {
			defer a.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
			defer cancel()
			if err := a.notifier.SendText(ctx, body); err != nil {
				logger.Warnf("notify setup %s failed: %v", id, err)
			}
		}(tr.ID, msg)
	}
}

// Wait blocks until pending sends finish.
func (a *SetupAlerter) Wait() {
	a.wg.Wait()
}

func (a *SetupAlerter) render(tr tradesetup.Transition) string {
	icon := "📈"
	switch tr.To {
	case tradesetup.StatusProfit:
		icon = "✅"
	case tradesetup.StatusStopLoss:
		icon = "🛑"
	}
	msg := &Alert{
		Headline: fmt.Sprintf("%s %s %s %s → %s", icon, tr.Symbol, tr.Direction, tr.ID, tr.To),
		At:       tr.At,
	}
	msg.Block("Transition",
		fmt.Sprintf("Price: %.2f", tr.Price),
		fmt.Sprintf("From: %s", tr.From),
	)

	if a.lookup != nil {
		if setup, ok := a.lookup(tr.ID); ok {
			targets := make([]string, 0, len(setup.Targets))
			for _, tg := range setup.Targets {
				targets = append(targets, fmt.Sprintf("%.2f", tg.Price))
			}
			targetLine := ""
			if len(targets) > 0 {
				targetLine = "Targets: " + strings.Join(targets, ", ")
			}
			msg.Block("Plan",
				fmt.Sprintf("Entry: %s %.2f (%s)", setup.Entry.Type, setup.Entry.Price, setup.Entry.Condition),
				fmt.Sprintf("Stop: %.2f", setup.StopLoss.Price),
				targetLine,
			)
			msg.Note = setup.RulesText
		}
	}
	return msg.Markdown()
}
