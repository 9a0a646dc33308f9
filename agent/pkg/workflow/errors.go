package workflow

import (
	"fmt"

	"github.com/Avexra-AI/SAS-Chatbot/utils/pkg/dberror"
)

// ExtractionError means the model's output could not be turned into an
// Intent, or the model declared the question unsupported.
type ExtractionError struct {
	Msg string
	Raw string
	Err error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Msg, e.Err)
	}
	return "extraction failed: " + e.Msg
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ExecutionError wraps a database failure together with the SQL that
// caused it.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed (%s): %v", dberror.Classify(e.Err), e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// SummarizationError means the natural-language answer could not be
// produced. The data itself is still valid.
type SummarizationError struct {
	Err error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("summarization failed: %v", e.Err)
}

func (e *SummarizationError) Unwrap() error { return e.Err }
