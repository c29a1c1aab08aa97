package inference

import (
	"context"
	"errors"
	"strings"
)

var errorMarkers = []string{"Error", "critical error", "ModelNotFoundError", "fetch failed", "Exception"}

// HasErrorMarker reports whether raw contains one of the known failure phrases
// printed by engine executables.
func HasErrorMarker(raw string) bool {
	for _, m := range errorMarkers {
		if strings.Contains(raw, m) {
			return true
		}
	}
	return false
}

// Classify decides whether a finished engine call failed. An engine error always
// fails the run. Text markers are only consulted when the output carries no valid
// structured payload, so analysis prose that mentions "Error" is not discarded.
func Classify(raw string, engineErr error, validPayload bool) (failed bool, message string) {
	if engineErr != nil {
		if errors.Is(engineErr, context.DeadlineExceeded) {
			return true, "inference timed out: " + engineErr.Error()
		}
		return true, engineErr.Error()
	}
	if !validPayload && HasErrorMarker(raw) {
		return true, raw
	}
	return false, ""
}
