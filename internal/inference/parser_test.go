package inference

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradewatch/internal/pkg/jsonutil"
	"tradewatch/internal/tradesetup"
)

var parseNow = time.Date(2024, 3, 12, 14, 0, 0, 0, time.UTC)

const fencedOutput = "Market is grinding higher.\n\n```json\n" + `{
  "inference_time": "10:00",
  "inference_price": "5002.50",
  "market_overview": "Range between 4990 and 5020",
  "setups": [
    {
      "id": "L1",
      "direction": "long",
      "status": "TRADING",
      "entry": {"type": "limit", "price": 5000, "condition": "price <= 5000"},
      "stop_loss": {"price": "4990", "description": "below range"},
      "targets": [{"price": 5020}, {"price": 5030, "description": "runner"}],
      "rules_text": "Buy the dip into 5000",
      "reasoning": "prior support"
    },
    {
      "id": "S1",
      "symbol": "@NQ",
      "direction": "SHORT",
      "created_at": "2024-03-12T13:30:00Z",
      "entry": {"price": 5020, "condition": "price >= 5020"},
      "stop_loss": {"price": 5030},
      "targets": [{"price": 5000}],
      "rules_text": "Fade the high"
    }
  ]
}` + "\n```\nGood luck."

func TestParseOutputFenced(t *testing.T) {
	out, err := ParseOutput(fencedOutput, parseNow)
	require.NoError(t, err)
	assert.Equal(t, jsonutil.SourceFence, out.Source)

	assert.Equal(t, "10:00", out.Summary.InferenceTime)
	assert.Equal(t, 5002.5, out.Summary.InferencePrice)
	assert.Equal(t, "Range between 4990 and 5020", out.Summary.MarketOverview)
	assert.Equal(t, 2, out.Summary.SetupCount)
	assert.Equal(t, parseNow, out.Summary.ParsedAt)

	require.Len(t, out.Setups, 2)
	long := out.Setups[0]
	assert.Equal(t, "L1", long.ID)
	assert.Equal(t, "@ES", long.Symbol)
	assert.Equal(t, tradesetup.Long, long.Direction)
	assert.Equal(t, tradesetup.StatusNew, long.Status, "engine-provided status is ignored")
	assert.Equal(t, 4990.0, long.StopLoss.Price)
	assert.Len(t, long.Targets, 2)
	assert.True(t, long.CreatedAt.IsZero())

	short := out.Setups[1]
	assert.Equal(t, "@NQ", short.Symbol)
	assert.Equal(t, "limit", short.Entry.Type)
	assert.Equal(t, time.Date(2024, 3, 12, 13, 30, 0, 0, time.UTC), short.CreatedAt.UTC())
}

func TestParseOutputBraceFallback(t *testing.T) {
	raw := `Analysis follows {"setups": [{"id": "A", "direction": "LONG", "entry": {"price": 1, "condition": "x"}, "stop_loss": {"price": 0.5}, "targets": [{"price": 2}], "rules_text": "r"}]} end`
	out, err := ParseOutput(raw, parseNow)
	require.NoError(t, err)
	assert.Equal(t, jsonutil.SourceBraces, out.Source)
	require.Len(t, out.Setups, 1)
	assert.Equal(t, "A", out.Setups[0].ID)
}

func TestParseOutputEmptySetups(t *testing.T) {
	out, err := ParseOutput(`{"market_overview": "quiet", "setups": []}`, parseNow)
	require.NoError(t, err)
	assert.Empty(t, out.Setups)
	assert.Equal(t, "quiet", out.Summary.MarketOverview)
}

func TestParseOutputFailures(t *testing.T) {
	cases := map[string]string{
		"prose only":        "No trade today, conditions unclear.",
		"invalid json":      "```json\n{\"setups\": [\n```",
		"missing setups":    `{"market_overview": "x"}`,
		"setups not array":  `{"setups": {"id": "A"}}`,
		"missing stop loss": `{"setups": [{"id": "A", "direction": "LONG", "entry": {"price": 1, "condition": "x"}, "targets": [], "rules_text": "r"}]}`,
		"bad direction":     `{"setups": [{"id": "A", "direction": "FLAT", "entry": {"price": 1, "condition": "x"}, "stop_loss": {"price": 1}, "targets": [], "rules_text": "r"}]}`,
		"non numeric price": `{"setups": [{"id": "A", "direction": "LONG", "entry": {"price": "soon", "condition": "x"}, "stop_loss": {"price": 1}, "targets": [], "rules_text": "r"}]}`,
		"empty id":          `{"setups": [{"id": "", "direction": "LONG", "entry": {"price": 1, "condition": "x"}, "stop_loss": {"price": 1}, "targets": [], "rules_text": "r"}]}`,
		"bad entry type":    `{"setups": [{"id": "A", "direction": "LONG", "entry": {"type": "iceberg", "price": 1, "condition": "x"}, "stop_loss": {"price": 1}, "targets": [], "rules_text": "r"}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseOutput(raw, parseNow)
			assert.Error(t, err)
		})
	}
}

func TestCoerceNumbersOnlyTouchesPrices(t *testing.T) {
	in := map[string]any{
		"id":    "123",
		"price": "5,001.25",
		"nested": []any{
			map[string]any{"price": " 42 ", "description": "7"},
		},
	}
	out := coerceNumbers(in, "").(map[string]any)
	assert.Equal(t, "123", out["id"])
	assert.Equal(t, 5001.25, out["price"])
	nested := out["nested"].([]any)[0].(map[string]any)
	assert.Equal(t, 42.0, nested["price"])
	assert.Equal(t, "7", nested["description"])
}
