package workflow

import (
	"context"

	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/compiler"
	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/governance"
)

// LLMClient is the interface for interacting with the language model.
type LLMClient interface {
	// Complete sends a prompt and returns the response text.
	Complete(ctx context.Context, systemPrompt, userPrompt string, opts ...CompleteOption) (string, error)
}

// CompleteOptions configures a Complete call.
type CompleteOptions struct {
	CacheSystemPrompt bool
	Temperature       *float64
}

// CompleteOption is a functional option for Complete.
type CompleteOption func(*CompleteOptions)

// WithCacheControl enables prompt caching for the system prompt.
func WithCacheControl() CompleteOption {
	return func(o *CompleteOptions) { o.CacheSystemPrompt = true }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) CompleteOption {
	return func(o *CompleteOptions) { o.Temperature = &t }
}

// Extractor turns a question into an untrusted Intent. Failures are
// reported as *ExtractionError.
type Extractor interface {
	Extract(ctx context.Context, question string, history []ConversationTurn) (governance.Intent, error)
}

// Querier executes compiled SQL. Failures are reported as *ExecutionError.
type Querier interface {
	Query(ctx context.Context, q compiler.Query) (ResultSet, error)
}

// Summarizer writes a short answer for a question from a preview of the
// result. Failures are reported as *SummarizationError.
type Summarizer interface {
	Summarize(ctx context.Context, question, sql string, preview ResultSet) (string, error)
}
