package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Avexra-AI/SAS-Chatbot/api/metrics"
	"github.com/Avexra-AI/SAS-Chatbot/utils/pkg/retry"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/getsentry/sentry-go"
)

// AnthropicConfig configures an AnthropicLLMClient.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int64
	Timeout   time.Duration
	Retry     retry.Config
	// Name labels logs and metrics, e.g. "extract" or "summarize".
	Name string
}

// AnthropicLLMClient implements LLMClient using the Anthropic API.
type AnthropicLLMClient struct {
	log       *slog.Logger
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	timeout   time.Duration
	retry     retry.Config
	name      string
}

// NewAnthropicLLMClient creates a new Anthropic-based LLM client. An empty
// API key falls back to ANTHROPIC_API_KEY.
func NewAnthropicLLMClient(log *slog.Logger, cfg AnthropicConfig) *AnthropicLLMClient {
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	// Retries are handled by utils/pkg/retry so they show up in our metrics.
	opts = append(opts, option.WithMaxRetries(0))

	if cfg.Name == "" {
		cfg.Name = "agent"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	rc := cfg.Retry
	if rc.MaxAttempts == 0 {
		rc = retry.DefaultConfig()
	}
	rc.Retryable = isRetryableAnthropicError

	return &AnthropicLLMClient{
		log:       log,
		client:    anthropic.NewClient(opts...),
		model:     anthropic.Model(cfg.Model),
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		retry:     rc,
		name:      cfg.Name,
	}
}

// WithName returns a copy of the client that labels its calls with name.
func (c *AnthropicLLMClient) WithName(name string) *AnthropicLLMClient {
	cp := *c
	cp.name = name
	return &cp
}

// Complete sends a prompt to Claude and returns the response text.
func (c *AnthropicLLMClient) Complete(ctx context.Context, systemPrompt, userPrompt string, opts ...CompleteOption) (string, error) {
	options := &CompleteOptions{}
	for _, opt := range opts {
		opt(options)
	}

	// Start Sentry span for AI monitoring
	span := sentry.StartSpan(ctx, "gen_ai.chat", sentry.WithDescription(fmt.Sprintf("chat %s", c.model)))
	span.SetData("gen_ai.operation.name", "chat")
	span.SetData("gen_ai.request.model", string(c.model))
	span.SetData("gen_ai.request.max_tokens", c.maxTokens)
	span.SetData("gen_ai.system", "anthropic")
	if sessionID, ok := SessionIDFromContext(ctx); ok {
		span.SetTag("session_id", sessionID)
	}
	if requestID, ok := RequestIDFromContext(ctx); ok {
		span.SetTag("request_id", requestID)
	}
	ctx = span.Context()
	defer span.Finish()

	systemBlock := anthropic.TextBlockParam{Type: "text", Text: systemPrompt}
	if options.CacheSystemPrompt {
		systemBlock.CacheControl = anthropic.NewCacheControlEphemeralParam()
	}
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    []anthropic.TextBlockParam{systemBlock},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}
	if options.Temperature != nil {
		params.Temperature = anthropic.Float(*options.Temperature)
	}

	start := time.Now()
	c.log.Debug("anthropic: call starting", "phase", c.name, "model", c.model, "userPromptLen", len(userPrompt))

	attempt := 0
	msg, err := retry.DoValue(ctx, c.retry, func() (*anthropic.Message, error) {
		attempt++
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		callStart := time.Now()
		m, err := c.client.Messages.New(callCtx, params)
		if err != nil {
			metrics.RecordAnthropicRequest(c.name, time.Since(callStart), err)
			c.log.Warn("anthropic: call attempt failed", "phase", c.name, "attempt", attempt, "error", err)
			return nil, err
		}
		return m, nil
	})

	duration := time.Since(start)
	if err != nil {
		c.log.Error("anthropic: call failed", "phase", c.name, "duration", duration, "attempts", attempt, "error", err)
		span.Status = sentry.SpanStatusInternalError
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	c.log.Info("anthropic: call completed",
		"phase", c.name,
		"duration", duration,
		"attempts", attempt,
		"stopReason", msg.StopReason,
		"inputTokens", msg.Usage.InputTokens,
		"outputTokens", msg.Usage.OutputTokens,
		"cacheReadInputTokens", msg.Usage.CacheReadInputTokens,
	)

	metrics.RecordAnthropicRequest(c.name, duration, nil)
	metrics.RecordAnthropicTokensWithCache(
		msg.Usage.InputTokens,
		msg.Usage.OutputTokens,
		msg.Usage.CacheCreationInputTokens,
		msg.Usage.CacheReadInputTokens,
	)

	span.SetData("gen_ai.usage.input_tokens", msg.Usage.InputTokens)
	span.SetData("gen_ai.usage.output_tokens", msg.Usage.OutputTokens)
	span.SetData("gen_ai.usage.total_tokens", msg.Usage.InputTokens+msg.Usage.OutputTokens)
	if msg.Usage.CacheReadInputTokens > 0 {
		span.SetData("gen_ai.usage.input_tokens.cached", msg.Usage.CacheReadInputTokens)
	}
	span.Status = sentry.SpanStatusOK

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in response")
}

func isRetryableAnthropicError(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return retry.IsRetryableStatus(apiErr.StatusCode)
	}
	return retry.IsRetryable(err)
}
