// Package summarizer turns an evidence bundle into a written answer using a
// language model.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"financeagent/internal/logger"
	"financeagent/internal/metrics"
	"financeagent/internal/ratelimit"
)

const (
	defaultMaxTokens = 1024
	defaultTimeout   = 60 * time.Second
)

// ErrEmptyResponse is returned when the model produced no text
var ErrEmptyResponse = errors.New("summarizer returned no text")

// Summarizer produces a written answer from a fully rendered prompt
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// AnthropicConfig configures the Anthropic-backed summarizer
type AnthropicConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Anthropic summarizes with the Anthropic Messages API
type Anthropic struct {
	messages  *anthropic.MessageService
	model     string
	maxTokens int
	timeout   time.Duration
	limiter   *ratelimit.Limiter
	logger    *slog.Logger
}

// NewAnthropic creates an Anthropic summarizer. The API key is required.
func NewAnthropic(cfg AnthropicConfig, limiter *ratelimit.Limiter) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("anthropic model is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	return &Anthropic{
		messages:  &client.Messages,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		limiter:   limiter,
		logger:    cfg.Logger.With("source", "anthropic"),
	}, nil
}

// Summarize sends the prompt as a single user message and returns the
// concatenated text of the reply
func (a *Anthropic) Summarize(ctx context.Context, text string) (summary string, err error) {
	defer func() { metrics.ObserveSummary(err) }()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.limiter.Wait(ctx, ratelimit.APIAnthropic); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	started := time.Now()
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(a.maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}

	a.logger.Debug("summary generated",
		"model", a.model,
		"duration", time.Since(started),
		"output_tokens", resp.Usage.OutputTokens)

	if strings.TrimSpace(out.String()) == "" {
		return "", ErrEmptyResponse
	}
	return NormalizeSpacedText(out.String()), nil
}
