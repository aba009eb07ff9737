// Package query derives the web search and news queries from a prompt.
package query

import (
	"strings"
)

// Pair holds the two queries sent to the web sources
type Pair struct {
	Search string `json:"search"`
	News   string `json:"news"`
}

// Expansion replaces the whole query when Match appears in the lowercased prompt
type Expansion struct {
	Match   string
	Replace string
}

// DefaultExpansions is checked in order; the first match wins
var DefaultExpansions = []Expansion{
	{Match: "tata", Replace: "Tata Group"},
}

// Builder builds query pairs using an expansion table
type Builder struct {
	Expansions []Expansion
}

var defaultBuilder = Builder{Expansions: DefaultExpansions}

// Build builds a query pair with the default expansion table
func Build(prompt string, tickers []string) Pair {
	return defaultBuilder.Build(prompt, tickers)
}

// Build derives the search and news queries. It never fails: an empty
// prompt yields the generic "company" queries.
func (b Builder) Build(prompt string, tickers []string) Pair {
	search := strings.TrimSpace(prompt)
	lower := strings.ToLower(search)

	for _, e := range b.Expansions {
		if e.Match != "" && strings.Contains(lower, strings.ToLower(e.Match)) {
			search = e.Replace
			break
		}
	}

	// short name-only prompts like "Infosys" search badly on their own
	if len(tickers) == 0 && len(strings.Fields(search)) <= 2 && !strings.Contains(strings.ToLower(search), "company") {
		search = strings.TrimSpace(search + " company")
	}

	news := search
	if !strings.Contains(strings.ToLower(search), "news") {
		news = search + " news"
	}

	return Pair{Search: search, News: news}
}
