// Package analyst answers finance questions: it resolves tickers, gathers
// evidence and asks the summarizer for a written answer.
package analyst

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"financeagent/internal/config"
	"financeagent/internal/evidence"
	"financeagent/internal/logger"
	"financeagent/internal/summarizer"
	"financeagent/internal/ticker"
)

// ErrInvalidTickers is returned by Compare when either ticker is unusable
var ErrInvalidTickers = errors.New("add two tickers (e.g., AAPL, MSFT) to run a comparison")

var errNoSummarizer = errors.New("summarizer not configured")

// Resolver extracts tickers from a prompt
type Resolver interface {
	Resolve(ctx context.Context, prompt string, maxTickers int) []string
}

// Aggregator gathers evidence for a prompt and its tickers
type Aggregator interface {
	Aggregate(ctx context.Context, prompt string, tickers []string, opts config.Request) (evidence.Bundle, error)
}

// Answer is the result of one question or comparison
type Answer struct {
	ID          string          `json:"id"`
	Content     string          `json:"content"`
	Tickers     []string        `json:"tickers"`
	Bundle      evidence.Bundle `json:"evidence"`
	Degraded    bool            `json:"degraded"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Service wires the resolver, the aggregator and the summarizer together.
// It keeps no state between calls.
type Service struct {
	resolver   Resolver
	aggregator Aggregator
	summarizer summarizer.Summarizer
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a Service. A nil summarizer makes every answer fall back to
// the raw-data note.
func New(resolver Resolver, aggregator Aggregator, sum summarizer.Summarizer, log *slog.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		resolver:   resolver,
		aggregator: aggregator,
		summarizer: sum,
		logger:     log,
		now:        time.Now,
	}
}

// Evidence resolves tickers and gathers the evidence bundle without summarizing
func (s *Service) Evidence(ctx context.Context, prompt string, opts config.Request) (evidence.Bundle, error) {
	if err := opts.Validate(); err != nil {
		return evidence.Bundle{}, err
	}

	tickers := s.resolver.Resolve(ctx, prompt, opts.MaxTickers)
	return s.aggregator.Aggregate(ctx, prompt, tickers, opts)
}

// Ask answers a free-form question. Only invalid options produce an error;
// a failed summary yields a degraded answer that still carries the evidence.
func (s *Service) Ask(ctx context.Context, prompt string, opts config.Request) (*Answer, error) {
	bundle, err := s.Evidence(ctx, prompt, opts)
	if err != nil {
		return nil, err
	}

	text, err := summarizer.BuildPrompt(prompt, bundle.Tickers, bundle)
	if err != nil {
		return nil, err
	}

	return s.answer(ctx, text, summarizer.FallbackNote, bundle), nil
}

// Compare gathers evidence for two tickers and asks for a side-by-side analysis
func (s *Service) Compare(ctx context.Context, tickerA, tickerB, focus string, opts config.Request) (*Answer, error) {
	a, b := ticker.Sanitize(tickerA), ticker.Sanitize(tickerB)
	if a == "" || b == "" {
		return nil, ErrInvalidTickers
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	tickers := []string{a, b}
	slices.Sort(tickers)
	tickers = slices.Compact(tickers)

	question := summarizer.ComparisonQuestion(a, b, focus)
	bundle, err := s.aggregator.Aggregate(ctx, question, tickers, opts)
	if err != nil {
		return nil, err
	}
	bundle.ComparisonPrompt = question
	bundle.Focus = focus

	text, err := summarizer.BuildComparisonPrompt(a, b, focus, bundle)
	if err != nil {
		return nil, err
	}

	return s.answer(ctx, text, summarizer.ComparisonFallbackNote, bundle), nil
}

func (s *Service) answer(ctx context.Context, text, fallback string, bundle evidence.Bundle) *Answer {
	ans := &Answer{
		ID:      uuid.NewString(),
		Tickers: bundle.Tickers,
		Bundle:  bundle,
	}

	content, err := s.summarize(ctx, text)
	if err != nil {
		s.logger.Warn("summary failed, returning raw evidence", "id", ans.ID, "error", err)
		ans.Content = fallback + err.Error()
		ans.Degraded = true
	} else {
		ans.Content = content
	}

	ans.GeneratedAt = s.now().UTC()
	return ans
}

func (s *Service) summarize(ctx context.Context, text string) (string, error) {
	if s.summarizer == nil {
		return "", errNoSummarizer
	}
	return s.summarizer.Summarize(ctx, text)
}
