package inference

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"tradewatch/internal/pkg/convert"
	"tradewatch/internal/pkg/jsonutil"
	"tradewatch/internal/state"
	"tradewatch/internal/tradesetup"
)

const defaultSymbol = "@ES"

//go:embed schema/engine_output.json
var outputSchemaJSON []byte

var (
	schemaOnce      sync.Once
	outputSchema    *jsonschema.Schema
	outputSchemaErr error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("engine_output.json", bytes.NewReader(outputSchemaJSON)); err != nil {
			outputSchemaErr = err
			return
		}
		outputSchema, outputSchemaErr = compiler.Compile("engine_output.json")
	})
	return outputSchema, outputSchemaErr
}

// ParsedOutput is the structured part of one engine response.
type ParsedOutput struct {
	Summary state.AnalysisSummary
	Setups  []tradesetup.TradeSetup
	Source  jsonutil.Source
	Payload string
}

type wireOutput struct {
	InferenceTime  string      `json:"inference_time"`
	InferencePrice *float64    `json:"inference_price"`
	MarketOverview string      `json:"market_overview"`
	Setups         []wireSetup `json:"setups"`
}

type wireSetup struct {
	ID        string                  `json:"id"`
	Symbol    string                  `json:"symbol"`
	Direction string                  `json:"direction"`
	CreatedAt string                  `json:"created_at"`
	Entry     tradesetup.EntryRule    `json:"entry"`
	StopLoss  tradesetup.StopLossRule `json:"stop_loss"`
	Targets   []tradesetup.TargetRule `json:"targets"`
	RulesText string                  `json:"rules_text"`
	Reasoning string                  `json:"reasoning"`
}

// ParseOutput extracts, validates and decodes the structured payload of raw. Any
// error means the payload must not touch the registry. Setups always come back
// with status NEW; the engine does not get to choose a lifecycle position.
func ParseOutput(raw string, now time.Time) (ParsedOutput, error) {
	candidate, source := jsonutil.ExtractStructured(raw)
	if candidate == "" {
		return ParsedOutput{}, fmt.Errorf("no structured payload in output")
	}
	if !gjson.Valid(candidate) {
		return ParsedOutput{}, fmt.Errorf("payload from %s is not valid json", source)
	}
	if !gjson.Parse(candidate).IsObject() {
		return ParsedOutput{}, fmt.Errorf("payload root must be an object")
	}
	if !gjson.Get(candidate, "setups").IsArray() {
		return ParsedOutput{}, fmt.Errorf("payload has no setups array")
	}

	var doc any
	dec := json.NewDecoder(strings.NewReader(candidate))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return ParsedOutput{}, fmt.Errorf("decode payload: %w", err)
	}
	doc = coerceNumbers(doc, "")

	schema, err := compiledSchema()
	if err != nil {
		return ParsedOutput{}, fmt.Errorf("compile output schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return ParsedOutput{}, fmt.Errorf("schema: %w", err)
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return ParsedOutput{}, err
	}
	var wire wireOutput
	if err := json.Unmarshal(normalized, &wire); err != nil {
		return ParsedOutput{}, fmt.Errorf("decode setups: %w", err)
	}

	out := ParsedOutput{Source: source, Payload: candidate}
	out.Summary = state.AnalysisSummary{
		InferenceTime:  strings.TrimSpace(wire.InferenceTime),
		MarketOverview: strings.TrimSpace(wire.MarketOverview),
		ParsedAt:       now,
	}
	if wire.InferencePrice != nil {
		out.Summary.InferencePrice = *wire.InferencePrice
	}
	for _, ws := range wire.Setups {
		setup, err := ws.toSetup()
		if err != nil {
			return ParsedOutput{}, err
		}
		out.Setups = append(out.Setups, setup)
	}
	out.Summary.SetupCount = len(out.Setups)
	return out, nil
}

func (w wireSetup) toSetup() (tradesetup.TradeSetup, error) {
	dir, ok := tradesetup.ParseDirection(w.Direction)
	if !ok {
		return tradesetup.TradeSetup{}, fmt.Errorf("setup %s: invalid direction %q", w.ID, w.Direction)
	}
	symbol := strings.TrimSpace(w.Symbol)
	if symbol == "" {
		symbol = defaultSymbol
	}
	entry := w.Entry
	if entry.Type == "" {
		entry.Type = "limit"
	}
	setup := tradesetup.TradeSetup{
		ID:        strings.TrimSpace(w.ID),
		Symbol:    symbol,
		Direction: dir,
		Status:    tradesetup.StatusNew,
		Entry:     entry,
		StopLoss:  w.StopLoss,
		Targets:   append([]tradesetup.TargetRule(nil), w.Targets...),
		RulesText: w.RulesText,
		Reasoning: w.Reasoning,
	}
	if ts := strings.TrimSpace(w.CreatedAt); ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			setup.CreatedAt = parsed
		}
	}
	return setup, nil
}

var numericKeys = map[string]bool{
	"price":           true,
	"inference_price": true,
}

// coerceNumbers turns json.Number into float64 and numeric strings under price keys
// into float64, since models sometimes quote prices.
func coerceNumbers(v any, key string) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = coerceNumbers(child, k)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = coerceNumbers(child, key)
		}
		return out
	case json.Number:
		if f, ok := convert.ToFloat64(val); ok {
			return f
		}
		return val
	case string:
		if !numericKeys[key] {
			return val
		}
		if f, ok := convert.ToFloat64(val); ok {
			return f
		}
		return val
	default:
		return val
	}
}
