// Package ticker turns free-form prompts into a bounded, sorted set of
// ticker symbols.
package ticker

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"financeagent/internal/fetcher"
	"financeagent/internal/logger"
)

var unsafeSymbolChars = regexp.MustCompile(`[^A-Za-z0-9.-]`)

// Sanitize strips everything outside [A-Za-z0-9.-] and uppercases the rest.
// An empty result means the value is not a usable symbol.
func Sanitize(value string) string {
	return strings.ToUpper(unsafeSymbolChars.ReplaceAllString(strings.TrimSpace(value), ""))
}

// Resolver runs the primary strategies and, only when they all come up
// empty, the fallback strategies in order until one produces a match.
type Resolver struct {
	primary   []Strategy
	fallbacks []Strategy
	logger    *slog.Logger
}

// New creates a resolver from explicit strategy lists
func New(primary, fallbacks []Strategy, log *slog.Logger) *Resolver {
	if log == nil {
		log = logger.Discard()
	}
	return &Resolver{
		primary:   primary,
		fallbacks: fallbacks,
		logger:    log,
	}
}

// NewDefault creates a resolver with the cashtag, uppercase and known-name
// strategies. A non-nil searcher is added as the only fallback.
func NewDefault(searcher fetcher.SymbolSearcher, log *slog.Logger) *Resolver {
	primary := []Strategy{DollarTags{}, UppercaseTokens{}, KnownNames{}}

	var fallbacks []Strategy
	if searcher != nil {
		fallbacks = append(fallbacks, SymbolLookup{Searcher: searcher, Logger: log})
	}

	return New(primary, fallbacks, log)
}

// Resolve returns at most maxTickers sanitized, deduplicated symbols in
// ascending order. The result never depends on strategy or match order.
func (r *Resolver) Resolve(ctx context.Context, prompt string, maxTickers int) []string {
	if maxTickers <= 0 {
		return []string{}
	}

	var candidates []string
	for _, s := range r.primary {
		candidates = append(candidates, s.Resolve(ctx, prompt)...)
	}

	if len(normalize(candidates)) == 0 {
		for _, s := range r.fallbacks {
			found := s.Resolve(ctx, prompt)
			if len(normalize(found)) > 0 {
				r.logger.Debug("resolved tickers with fallback", "strategy", s.Name(), "count", len(found))
				candidates = found
				break
			}
		}
	}

	tickers := normalize(candidates)
	if len(tickers) > maxTickers {
		tickers = tickers[:maxTickers]
	}
	return tickers
}

// normalize sanitizes, deduplicates and sorts symbols
func normalize(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		clean := Sanitize(s)
		if clean == "" {
			continue
		}
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
	}
	sort.Strings(out)
	return out
}
