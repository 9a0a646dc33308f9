package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/governance"
	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/registry"
)

const unsupportedMarker = "UNSUPPORTED"

// DefaultHistoryTurns is how many prior turns are given to the model.
const DefaultHistoryTurns = 5

const extractSystemPrompt = `You translate business questions into a JSON intent for a governed analytics system.

You do not write SQL. You only choose from the catalog below.

Rules:
1. Output exactly one JSON object: {"metric": "<metric>", "dimensions": ["<dimension>", ...], "filters": {"<dimension>": <value>}}
2. "metric" must be one metric name from the catalog.
3. "dimensions" lists the dimension names to group by, in the order they should appear. Use [] for a single total.
4. "filters" is optional. Keys must be dimension names; values must be a single string, number or boolean for an equality match.
5. Never invent metrics, dimensions or filter keys. Follow-up questions may reuse the previous intent.
6. If the question cannot be answered with the catalog, output exactly: UNSUPPORTED
7. No markdown, no explanation.

CATALOG
%s`

// LLMExtractor asks the model for an Intent.
type LLMExtractor struct {
	log          *slog.Logger
	llm          LLMClient
	systemPrompt string
	historyTurns int
}

// ExtractorOption configures an LLMExtractor.
type ExtractorOption func(*LLMExtractor)

// WithHistoryTurns caps the prior turns included in the prompt. Values
// below one leave the default in place.
func WithHistoryTurns(n int) ExtractorOption {
	return func(e *LLMExtractor) {
		if n > 0 {
			e.historyTurns = n
		}
	}
}

func NewLLMExtractor(log *slog.Logger, llm LLMClient, reg *registry.Registry, opts ...ExtractorOption) *LLMExtractor {
	e := &LLMExtractor{
		log:          log,
		llm:          llm,
		systemPrompt: fmt.Sprintf(extractSystemPrompt, reg.Describe()),
		historyTurns: DefaultHistoryTurns,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *LLMExtractor) Extract(ctx context.Context, question string, history []ConversationTurn) (governance.Intent, error) {
	raw, err := e.llm.Complete(ctx, e.systemPrompt, e.userPrompt(question, history), WithCacheControl(), WithTemperature(0))
	if err != nil {
		return governance.Intent{}, &ExtractionError{Msg: "model call failed", Err: err}
	}
	intent, err := ParseIntent(raw)
	if err != nil {
		e.log.Info("extract: unusable model output", "error", err, "outputLen", len(raw))
		return governance.Intent{}, err
	}
	return intent, nil
}

func (e *LLMExtractor) userPrompt(question string, history []ConversationTurn) string {
	var sb strings.Builder
	if len(history) > e.historyTurns {
		history = history[len(history)-e.historyTurns:]
	}
	if len(history) > 0 {
		sb.WriteString("Previous questions and their intents:\n")
		for _, turn := range history {
			intent, _ := json.Marshal(turn.Intent)
			fmt.Fprintf(&sb, "Q: %s\nIntent: %s\n", turn.Question, intent)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)
	return sb.String()
}

// ParseIntent converts model output into an Intent. Markdown fences are
// removed and an object truncated by at most two closing braces is
// repaired; anything else that does not decode into an object with a
// string "metric" and a list of string "dimensions" is an ExtractionError.
func ParseIntent(raw string) (governance.Intent, error) {
	text := stripCodeFences(raw)
	if text == "" {
		return governance.Intent{}, &ExtractionError{Msg: "empty model output"}
	}
	if strings.EqualFold(strings.Trim(text, " .\"'`"), unsupportedMarker) {
		return governance.Intent{}, &ExtractionError{Msg: "question not supported by the semantic model", Raw: raw}
	}
	start := strings.Index(text, "{")
	if start < 0 {
		return governance.Intent{}, &ExtractionError{Msg: "no JSON object in model output", Raw: raw}
	}
	text = escapeNewlinesInStrings(text[start:])

	obj, err := decodeObject(text)
	if err != nil {
		repaired, ok := closeTrailingBraces(text)
		if !ok {
			return governance.Intent{}, &ExtractionError{Msg: "malformed JSON", Raw: raw, Err: err}
		}
		obj, err = decodeObject(repaired)
		if err != nil {
			return governance.Intent{}, &ExtractionError{Msg: "malformed JSON after repair", Raw: raw, Err: err}
		}
	}

	var intent governance.Intent
	metric, ok := obj["metric"].(string)
	if !ok || strings.TrimSpace(metric) == "" {
		return governance.Intent{}, &ExtractionError{Msg: `missing or invalid "metric"`, Raw: raw}
	}
	intent.Metric = strings.TrimSpace(metric)

	dims, present := obj["dimensions"]
	if !present {
		return governance.Intent{}, &ExtractionError{Msg: `missing "dimensions"`, Raw: raw}
	}
	list, ok := dims.([]any)
	if !ok {
		return governance.Intent{}, &ExtractionError{Msg: `"dimensions" must be a list`, Raw: raw}
	}
	intent.Dimensions = make([]string, 0, len(list))
	for _, d := range list {
		s, ok := d.(string)
		if !ok {
			return governance.Intent{}, &ExtractionError{Msg: `"dimensions" must contain only strings`, Raw: raw}
		}
		intent.Dimensions = append(intent.Dimensions, strings.TrimSpace(s))
	}

	switch f := obj["filters"].(type) {
	case nil:
	case map[string]any:
		if len(f) > 0 {
			intent.Filters = f
		}
	default:
		return governance.Intent{}, &ExtractionError{Msg: `"filters" must be an object`, Raw: raw}
	}
	return intent, nil
}

// decodeObject decodes the first JSON value of s, which must be an object.
// Trailing text after the object is ignored.
func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("not an object")
	}
	return obj, nil
}
