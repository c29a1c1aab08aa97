package inference

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name      string
		raw       string
		err       error
		valid     bool
		failed    bool
		wantInMsg string
	}{
		{name: "clean text", raw: "Market looks fine", failed: false},
		{name: "marker without payload", raw: "Error executing CLI: boom", failed: true, wantInMsg: "Error executing CLI"},
		{name: "each marker", raw: "ModelNotFoundError: gemini-x", failed: true},
		{name: "fetch failed", raw: "TypeError: fetch failed", failed: true},
		{name: "marker with valid payload", raw: `Error bars were wide {"setups": []}`, valid: true, failed: false},
		{name: "engine error wins", raw: `{"setups": []}`, err: errors.New("exit status 1"), valid: true, failed: true, wantInMsg: "exit status 1"},
		{name: "timeout", err: fmt.Errorf("invoke: %w", context.DeadlineExceeded), failed: true, wantInMsg: "timed out"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			failed, msg := Classify(tc.raw, tc.err, tc.valid)
			assert.Equal(t, tc.failed, failed)
			if tc.wantInMsg != "" {
				assert.Contains(t, msg, tc.wantInMsg)
			}
		})
	}
}

func TestBuildPromptContext(t *testing.T) {
	now := time.Date(2024, 3, 12, 14, 42, 10, 0, time.UTC)
	assert.Equal(t, "Current Time: 10:42\nCurrent Price: 5000.25", BuildPromptContext(now, 5000.25, ""))
	assert.Equal(t, "Current Time: 10:42\nCurrent Price: Unknown\nTRIGGER: Price near Trendline: x",
		BuildPromptContext(now, 0, " Price near Trendline: x "))
}
