package logger

import (
	"io"
	"log"
	"strings"
	"sync"
)

var (
	transcriptMu  sync.Mutex
	transcriptLog *log.Logger
)

// SetTranscriptWriter routes full inference prompts and responses to w.
// A nil writer disables transcripts.
func SetTranscriptWriter(w io.Writer) {
	transcriptMu.Lock()
	defer transcriptMu.Unlock()
	if w == nil {
		transcriptLog = nil
		return
	}
	transcriptLog = log.New(w, "", log.LstdFlags)
}

type transcriptSection struct {
	Title string
	Body  string
}

func writeTranscript(kind, engine, runID string, sections []transcriptSection) {
	transcriptMu.Lock()
	l := transcriptLog
	transcriptMu.Unlock()
	if l == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[INFERENCE]")
	for _, tag := range []string{kind, engine, runID} {
		if tag == "" {
			continue
		}
		b.WriteString("[")
		b.WriteString(tag)
		b.WriteString("]")
	}
	b.WriteString("\n")
	for _, sec := range sections {
		title := strings.TrimSpace(sec.Title)
		if title == "" {
			title = "CONTENT"
		}
		b.WriteString("--- ")
		b.WriteString(title)
		b.WriteString(" ---\n")
		b.WriteString(sec.Body)
		if !strings.HasSuffix(sec.Body, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	l.Print(b.String())
}

func LogInferenceRequest(engine, runID, promptContext string) {
	writeTranscript("request", engine, runID, []transcriptSection{{Title: "CONTEXT", Body: promptContext}})
}

func LogInferenceResponse(engine, runID, raw string, err error) {
	sections := []transcriptSection{{Title: "RAW", Body: raw}}
	if err != nil {
		sections = append(sections, transcriptSection{Title: "ERROR", Body: err.Error()})
	}
	writeTranscript("response", engine, runID, sections)
}
