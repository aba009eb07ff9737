package ticker

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"financeagent/internal/fetcher"
	"financeagent/internal/logger"
)

// Strategy extracts candidate ticker symbols from a prompt.
// A strategy never fails: no match is reported as an empty result.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, prompt string) []string
}

var (
	dollarTagPattern = regexp.MustCompile(`\$([A-Za-z]{1,5})\b`)
	uppercasePattern = regexp.MustCompile(`\b[A-Z]{1,5}\b`)
)

// Stopwords are short all-caps words that look like tickers but almost never are
var Stopwords = newSet(
	"A", "AN", "AND", "ARE", "AS", "AT", "BE", "BY",
	"CEO", "CFO", "COO", "EPS", "ETF", "ETFS",
	"FOR", "FROM", "GDP", "IN", "INC", "IS", "IT",
	"LA", "LLC", "LTD", "OF", "ON", "OR", "Q",
	"THE", "TO", "US", "USA", "USD", "WEEK", "YEAR",
)

// KnownCompanies maps lowercase company names to their primary listing
var KnownCompanies = map[string]string{
	"apple":      "AAPL",
	"microsoft":  "MSFT",
	"amazon":     "AMZN",
	"alphabet":   "GOOGL",
	"google":     "GOOGL",
	"meta":       "META",
	"nvidia":     "NVDA",
	"tesla":      "TSLA",
	"netflix":    "NFLX",
	"amd":        "AMD",
	"intel":      "INTC",
	"salesforce": "CRM",
	"oracle":     "ORCL",
	"ibm":        "IBM",
}

// KnownGroups maps lowercase group names to every listing they cover
var KnownGroups = map[string][]string{
	"tata": {"TCS.NS", "TATAMOTORS.NS", "TATASTEEL.NS"},
}

func newSet(words ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

// DollarTags matches cashtags such as $TSLA in any letter case
type DollarTags struct{}

func (DollarTags) Name() string { return "dollar_tags" }

func (DollarTags) Resolve(_ context.Context, prompt string) []string {
	var out []string
	for _, m := range dollarTagPattern.FindAllStringSubmatch(prompt, -1) {
		out = append(out, strings.ToUpper(m[1]))
	}
	return out
}

// UppercaseTokens matches standalone all-caps words of up to five letters,
// skipping stopwords
type UppercaseTokens struct {
	Stopwords map[string]struct{}
}

func (UppercaseTokens) Name() string { return "uppercase_tokens" }

func (u UppercaseTokens) Resolve(_ context.Context, prompt string) []string {
	stop := u.Stopwords
	if stop == nil {
		stop = Stopwords
	}

	var out []string
	for _, token := range uppercasePattern.FindAllString(prompt, -1) {
		if _, ok := stop[token]; ok {
			continue
		}
		out = append(out, token)
	}
	return out
}

// KnownNames matches company names contained anywhere in the prompt, ignoring case
type KnownNames struct {
	Companies map[string]string
	Groups    map[string][]string
}

func (KnownNames) Name() string { return "known_names" }

func (k KnownNames) Resolve(_ context.Context, prompt string) []string {
	companies, groups := k.Companies, k.Groups
	if companies == nil && groups == nil {
		companies, groups = KnownCompanies, KnownGroups
	}

	lower := strings.ToLower(prompt)
	var out []string
	for name, symbol := range companies {
		if strings.Contains(lower, name) {
			out = append(out, symbol)
		}
	}
	for name, symbols := range groups {
		if strings.Contains(lower, name) {
			out = append(out, symbols...)
		}
	}
	return out
}

// SymbolLookup asks a symbol search service to resolve the prompt.
// Lookup failures are treated as no match.
type SymbolLookup struct {
	Searcher fetcher.SymbolSearcher
	Limit    int
	Logger   *slog.Logger
}

const defaultLookupLimit = 5

func (SymbolLookup) Name() string { return "symbol_lookup" }

func (s SymbolLookup) Resolve(ctx context.Context, prompt string) []string {
	if s.Searcher == nil || strings.TrimSpace(prompt) == "" {
		return nil
	}

	limit := s.Limit
	if limit <= 0 {
		limit = defaultLookupLimit
	}
	log := s.Logger
	if log == nil {
		log = logger.Discard()
	}

	symbols, err := s.Searcher.SearchSymbols(ctx, prompt, limit)
	if err != nil {
		log.Debug("symbol lookup failed", "error", err)
		return nil
	}
	if len(symbols) > limit {
		symbols = symbols[:limit]
	}
	return symbols
}
