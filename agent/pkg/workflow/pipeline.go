// Package workflow answers a business question end to end: extract an
// intent, govern it, compile it, execute it, choose a visualization and
// summarize the result.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Avexra-AI/SAS-Chatbot/agent/pkg/visualization"
	"github.com/Avexra-AI/SAS-Chatbot/api/metrics"
	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/compiler"
	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/governance"
	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/registry"
	"github.com/Avexra-AI/SAS-Chatbot/utils/pkg/dberror"
)

// UnansweredMessage is the answer given when a question cannot be mapped
// onto the semantic model.
const UnansweredMessage = "I could not answer this question using the available data."

// Config holds the collaborators of a Pipeline.
type Config struct {
	Logger     *slog.Logger
	Registry   *registry.Registry
	Extractor  Extractor
	Querier    Querier
	Summarizer Summarizer
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Registry == nil {
		return errors.New("registry is required")
	}
	if cfg.Extractor == nil {
		return errors.New("extractor is required")
	}
	if cfg.Querier == nil {
		return errors.New("querier is required")
	}
	if cfg.Summarizer == nil {
		return errors.New("summarizer is required")
	}
	return nil
}

// Pipeline runs questions through the governed query path.
type Pipeline struct {
	log        *slog.Logger
	registry   *registry.Registry
	extractor  Extractor
	querier    Querier
	summarizer Summarizer
}

func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	return &Pipeline{
		log:        cfg.Logger,
		registry:   cfg.Registry,
		extractor:  cfg.Extractor,
		querier:    cfg.Querier,
		summarizer: cfg.Summarizer,
	}, nil
}

// Run answers a question. Extraction and governance failures, database
// errors and summarization errors all produce a Result; only a compile
// failure, which means the validator and registry disagree, is returned as
// an error.
func (p *Pipeline) Run(ctx context.Context, question string, history []ConversationTurn) (*Result, error) {
	start := time.Now()
	outcome := "answered"
	defer func() { metrics.RecordPipelineRun(outcome, time.Since(start)) }()

	intent, err := p.extractor.Extract(ctx, question, history)
	if err != nil {
		outcome = "extraction_failed"
		var ee *ExtractionError
		if !errors.As(err, &ee) {
			err = &ExtractionError{Msg: "extractor failed", Err: err}
		}
		p.log.Info("pipeline: extraction failed", "error", err)
		return &Result{Answer: UnansweredMessage, Confidence: confidenceRejected, Error: err.Error()}, nil
	}

	validated, err := governance.Validate(intent, p.registry)
	if err != nil {
		outcome = "rejected"
		var ge *governance.GovernanceError
		if errors.As(err, &ge) {
			metrics.RecordGovernanceRejection(string(ge.Reason))
		}
		p.log.Info("pipeline: intent rejected", "metric", intent.Metric, "dimensions", intent.Dimensions, "error", err)
		return &Result{
			Answer:     UnansweredMessage,
			Confidence: confidenceRejected,
			Error:      err.Error(),
			Intent:     &intent,
		}, nil
	}
	echoed := validated.Intent()

	query, err := compiler.Compile(validated)
	if err != nil {
		outcome = "compile_failed"
		p.log.Error("pipeline: compile failed for validated intent", "metric", intent.Metric, "error", err)
		return nil, err
	}

	rs, err := p.querier.Query(ctx, query)
	if err != nil {
		outcome = "execution_failed"
		p.log.Warn("pipeline: execution failed", "sql", query.SQL, "errorType", dberror.Classify(err), "error", err)
		return &Result{
			Answer:     dberror.UserMessage(err),
			SQL:        query.SQL,
			Confidence: confidenceExecError,
			Error:      err.Error(),
			Intent:     &echoed,
		}, nil
	}
	if rs.Columns == nil {
		rs.Columns = defaultColumns(validated)
	}

	viz := visualization.Select(rs.Columns, rs.Rows)
	metrics.RecordVisualization(string(viz.Type))

	preview := ResultSet{Columns: rs.Columns, Rows: rs.Preview(SummaryPreviewRows)}
	answer, err := p.summarizer.Summarize(ctx, question, query.SQL, preview)
	if err != nil {
		outcome = "summary_fallback"
		p.log.Warn("pipeline: summarization failed, using fallback answer", "error", err)
		answer = FallbackAnswer(rs)
	}

	return &Result{
		Answer:        answer,
		Visualization: &viz,
		Columns:       rs.Columns,
		Data:          rs.Rows,
		SQL:           query.SQL,
		Confidence:    Confidence(len(rs.Rows), viz),
		Intent:        &echoed,
	}, nil
}

func defaultColumns(v *governance.ValidatedIntent) []string {
	cols := []string{v.Metric().Name}
	for _, d := range v.Dimensions() {
		cols = append(cols, d.Name)
	}
	return cols
}
