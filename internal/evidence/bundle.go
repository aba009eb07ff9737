// Package evidence defines the bundle the aggregator produces and its JSON form.
package evidence

import (
	"encoding/json"

	"financeagent/internal/fetcher"
	"financeagent/internal/query"
)

// Bundle is the evidence gathered for one prompt. It is a value: once the
// aggregator returns it nothing modifies it.
type Bundle struct {
	Tickers []string
	Queries query.Pair
	Web     Web
	Finance map[string]FinancialRecord

	// Set only by the comparison flow
	ComparisonPrompt string
	Focus            string
}

type bundleJSON struct {
	Tickers          []string                   `json:"tickers"`
	Queries          query.Pair                 `json:"queries"`
	Web              Web                        `json:"web"`
	Finance          map[string]FinancialRecord `json:"finance"`
	ComparisonPrompt string                     `json:"comparison_prompt,omitempty"`
	Focus            string                     `json:"focus,omitempty"`
}

// MarshalJSON renders the bundle with its fixed key layout. Empty ticker
// lists and finance sections are rendered as [] and {}, never null.
func (b Bundle) MarshalJSON() ([]byte, error) {
	w := bundleJSON{
		Tickers:          b.Tickers,
		Queries:          b.Queries,
		Web:              b.Web,
		Finance:          b.Finance,
		ComparisonPrompt: b.ComparisonPrompt,
		Focus:            b.Focus,
	}
	if w.Tickers == nil {
		w.Tickers = []string{}
	}
	if w.Finance == nil {
		w.Finance = map[string]FinancialRecord{}
	}
	return json.Marshal(w)
}

// JSON returns the indented, deterministic encoding of the bundle
func (b Bundle) JSON() ([]byte, error) {
	return json.MarshalIndent(b, "", "  ")
}

// Section is the outcome of one web source: the raw items plus the subset
// that passed the relevance filter, or the reason the call failed.
type Section[T any] struct {
	Result   fetcher.Result[[]T]
	Filtered []T
}

// NewSection records a successful call
func NewSection[T any](items, filtered []T) *Section[T] {
	if items == nil {
		items = []T{}
	}
	if filtered == nil {
		filtered = []T{}
	}
	return &Section[T]{Result: fetcher.Ok(items), Filtered: filtered}
}

// FailedSection records a failed call
func FailedSection[T any](err error) *Section[T] {
	return &Section[T]{Result: fetcher.Fail[[]T](err)}
}

// Web holds the web news and web search sections. A nil section was not requested.
type Web struct {
	News   *Section[fetcher.NewsItem]
	Search *Section[fetcher.SearchHit]
}

// MarshalJSON writes each requested section either as "<name>" and
// "<name>_filtered" or as "<name>_error"
func (w Web) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 4)
	putSection(out, "news", w.News)
	putSection(out, "search", w.Search)
	return json.Marshal(out)
}

func putSection[T any](out map[string]any, name string, s *Section[T]) {
	if s == nil {
		return
	}
	if !s.Result.IsOk() {
		out[name+"_error"] = s.Result.Err
		return
	}
	out[name] = s.Result.Value
	out[name+"_filtered"] = s.Filtered
}

// FinancialRecord holds the four independent finance lookups for one ticker
type FinancialRecord struct {
	Price                  fetcher.Result[string]
	CompanyInfo            fetcher.Result[fetcher.Document]
	AnalystRecommendations fetcher.Result[fetcher.Document]
	CompanyNews            fetcher.Result[fetcher.Document]
}

// MarshalJSON writes each field either under its name or under "<name>_error"
func (r FinancialRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 4)
	putResult(out, "price", r.Price)
	putResult(out, "company_info", r.CompanyInfo)
	putResult(out, "analyst_recommendations", r.AnalystRecommendations)
	putResult(out, "company_news", r.CompanyNews)
	return json.Marshal(out)
}

func putResult[T any](out map[string]any, name string, r fetcher.Result[T]) {
	if r.IsOk() {
		out[name] = r.Value
		return
	}
	out[name+"_error"] = r.Err
}

// Failures counts the fields that hold an error
func (r FinancialRecord) Failures() int {
	n := 0
	for _, ok := range []bool{r.Price.IsOk(), r.CompanyInfo.IsOk(), r.AnalystRecommendations.IsOk(), r.CompanyNews.IsOk()} {
		if !ok {
			n++
		}
	}
	return n
}
