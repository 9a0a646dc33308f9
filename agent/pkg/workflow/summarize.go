package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// SummaryPreviewRows is how many rows the summarizer sees.
const SummaryPreviewRows = 5

const summarizeSystemPrompt = `You are a business analytics assistant.

Rules:
- Do not explain SQL.
- Do not mention tables, joins or calculations.
- Answer only what the user asked, concisely and clearly.
- If the result is empty, say so politely.

Return only the answer text.`

// LLMSummarizer writes the answer text with the model.
type LLMSummarizer struct {
	log *slog.Logger
	llm LLMClient
}

func NewLLMSummarizer(log *slog.Logger, llm LLMClient) *LLMSummarizer {
	return &LLMSummarizer{log: log, llm: llm}
}

func (s *LLMSummarizer) Summarize(ctx context.Context, question, sql string, preview ResultSet) (string, error) {
	user := fmt.Sprintf("User question:\n%s\n\nQuery result:\n%s", question, FormatResultSet(preview, SummaryPreviewRows))
	text, err := s.llm.Complete(ctx, summarizeSystemPrompt, user, WithCacheControl(), WithTemperature(0.3))
	if err != nil {
		return "", &SummarizationError{Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &SummarizationError{Err: fmt.Errorf("empty answer")}
	}
	return text, nil
}

// FallbackAnswer describes a result without the model.
func FallbackAnswer(rs ResultSet) string {
	switch len(rs.Rows) {
	case 0:
		return "The query returned no data for this question."
	case 1:
		parts := make([]string, 0, len(rs.Columns))
		for _, c := range rs.Columns {
			parts = append(parts, fmt.Sprintf("%s: %s", c, FormatValue(rs.Rows[0][c])))
		}
		return "Result: " + strings.Join(parts, ", ") + "."
	default:
		return fmt.Sprintf("The query returned %d rows. See the table and chart for details.", len(rs.Rows))
	}
}
