package jsonutil

import (
	"strings"
)

const (
	codeFence = "```"
	jsonFence = "```json"
)

// Source tells which stage of ExtractStructured produced the candidate.
type Source int

const (
	SourceNone Source = iota
	SourceFence
	SourceBraces
	SourceRaw
)

func (s Source) String() string {
	switch s {
	case SourceFence:
		return "fence"
	case SourceBraces:
		return "braces"
	case SourceRaw:
		return "raw"
	default:
		return "none"
	}
}

// ExtractStructured pulls a JSON candidate out of model prose. It tries, in order,
// the first ```json fenced block, the span from the first '{' to the last '}', and
// finally the whole text with fence markers stripped. The candidate is not validated.
func ExtractStructured(raw string) (string, Source) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", SourceNone
	}
	if block, ok := extractJSONFence(raw); ok {
		return block, SourceFence
	}
	if span, ok := widestObject(raw); ok {
		return span, SourceBraces
	}
	stripped := strings.ReplaceAll(raw, jsonFence, "")
	stripped = strings.TrimSpace(strings.ReplaceAll(stripped, codeFence, ""))
	if stripped == "" {
		return "", SourceNone
	}
	return stripped, SourceRaw
}

func extractJSONFence(raw string) (string, bool) {
	start := strings.Index(raw, jsonFence)
	if start == -1 {
		return "", false
	}
	rest := raw[start+len(jsonFence):]
	end := strings.Index(rest, codeFence)
	if end == -1 {
		return "", false
	}
	block := strings.TrimSpace(rest[:end])
	return block, block != ""
}

func widestObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}
