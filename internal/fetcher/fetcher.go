package fetcher

import "context"

// SearchHit is a single web search result
type SearchHit struct {
	Title string `json:"title"`
	Href  string `json:"href"`
	Body  string `json:"body"`
}

// RelevanceText returns the text the relevance filter matches keywords against
func (h SearchHit) RelevanceText() string {
	return h.Title + " " + h.Body
}

// NewsItem is a single web news result
type NewsItem struct {
	Date   string `json:"date,omitempty"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	URL    string `json:"url"`
	Image  string `json:"image,omitempty"`
	Source string `json:"source,omitempty"`
}

// RelevanceText returns the text the relevance filter matches keywords against
func (n NewsItem) RelevanceText() string {
	return n.Title + " " + n.Body
}

// WebSearcher runs general web searches.
type WebSearcher interface {
	SearchWeb(ctx context.Context, query string, maxResults int) ([]SearchHit, error)
}

// NewsSearcher runs web news searches.
type NewsSearcher interface {
	SearchNews(ctx context.Context, query string, maxResults int) ([]NewsItem, error)
}

// FinanceProvider fetches per-ticker financial data. Each method is an
// independent call: a failure in one must not affect the others.
//
// Payloads are returned as text. Providers that speak JSON return the JSON
// encoding of their record; the coordinator parses it opportunistically with
// ParseDocument and keeps the raw text when it is not valid JSON.
type FinanceProvider interface {
	// CurrentPrice returns the last traded price as a decimal string.
	CurrentPrice(ctx context.Context, ticker string) (string, error)

	// CompanyInfo returns the company profile and key statistics.
	CompanyInfo(ctx context.Context, ticker string) (string, error)

	// AnalystRecommendations returns the recent analyst rating trend.
	AnalystRecommendations(ctx context.Context, ticker string) (string, error)

	// CompanyNews returns up to count recent stories about the company.
	CompanyNews(ctx context.Context, ticker string, count int) (string, error)
}

// SymbolSearcher resolves free text (usually a company name) into ticker symbols.
// It is best-effort: callers treat any error as "no match".
type SymbolSearcher interface {
	SearchSymbols(ctx context.Context, text string, limit int) ([]string, error)
}
