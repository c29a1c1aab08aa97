package jsonutil

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// Pretty indents an engine payload for the debug log. Anything that is not valid
// JSON comes back trimmed but otherwise as the engine sent it.
func Pretty(payload string) string {
	payload = strings.TrimSpace(payload)
	if payload == "" || !gjson.Valid(payload) {
		return payload
	}
	return strings.TrimRight(string(pretty.Pretty([]byte(payload))), "\n")
}
