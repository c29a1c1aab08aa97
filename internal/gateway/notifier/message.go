package notifier

import (
	"strings"
	"time"

	"tradewatch/internal/pkg/text"
)

// Telegram rejects messages over 4096 characters; leave room for markup.
const maxAlertLen = 3800

type alertBlock struct {
	title string
	lines []string
}

// Alert is a chat message laid out as a headline, fenced blocks of bullets, an
// optional note and a timestamp.
type Alert struct {
	Headline string
	Note     string
	At       time.Time

	blocks []alertBlock
}

// Block appends a titled block. Blank lines are dropped and a block left with no
// lines is not rendered.
func (a *Alert) Block(title string, lines ...string) *Alert {
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, unfence(line))
		}
	}
	if len(kept) > 0 {
		a.blocks = append(a.blocks, alertBlock{title: unfence(strings.TrimSpace(title)), lines: kept})
	}
	return a
}

// Markdown renders the alert for Telegram.
func (a *Alert) Markdown() string {
	parts := make([]string, 0, 4)
	if h := strings.TrimSpace(a.Headline); h != "" {
		parts = append(parts, h)
	}
	if len(a.blocks) > 0 {
		var b strings.Builder
		b.WriteString("```\n")
		for i, blk := range a.blocks {
			if i > 0 {
				b.WriteString("\n")
			}
			if blk.title != "" {
				b.WriteString(blk.title + "\n")
			}
			for _, line := range blk.lines {
				b.WriteString("- " + line + "\n")
			}
		}
		b.WriteString("```")
		parts = append(parts, b.String())
	}
	var tail []string
	if note := strings.TrimSpace(a.Note); note != "" {
		tail = append(tail, unfence(note))
	}
	if !a.At.IsZero() {
		tail = append(tail, "Time: "+a.At.Format("2006-01-02 15:04:05 MST"))
	}
	if len(tail) > 0 {
		parts = append(parts, strings.Join(tail, "\n"))
	}
	return text.Truncate(strings.Join(parts, "\n\n"), maxAlertLen)
}

// unfence keeps model text from closing the code block early.
func unfence(s string) string {
	return strings.ReplaceAll(s, "```", "'''")
}
