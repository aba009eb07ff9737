package testutil

import (
	"context"
	"sync/atomic"

	"financeagent/internal/fetcher"
)

// MockWebSearcher is a mock implementation of fetcher.WebSearcher
type MockWebSearcher struct {
	SearchWebFunc func(ctx context.Context, query string, maxResults int) ([]fetcher.SearchHit, error)
	Calls         atomic.Int32
}

// SearchWeb implements fetcher.WebSearcher
func (m *MockWebSearcher) SearchWeb(ctx context.Context, query string, maxResults int) ([]fetcher.SearchHit, error) {
	m.Calls.Add(1)
	if m.SearchWebFunc != nil {
		return m.SearchWebFunc(ctx, query, maxResults)
	}
	return []fetcher.SearchHit{}, nil
}

// MockNewsSearcher is a mock implementation of fetcher.NewsSearcher
type MockNewsSearcher struct {
	SearchNewsFunc func(ctx context.Context, query string, maxResults int) ([]fetcher.NewsItem, error)
	Calls          atomic.Int32
}

// SearchNews implements fetcher.NewsSearcher
func (m *MockNewsSearcher) SearchNews(ctx context.Context, query string, maxResults int) ([]fetcher.NewsItem, error) {
	m.Calls.Add(1)
	if m.SearchNewsFunc != nil {
		return m.SearchNewsFunc(ctx, query, maxResults)
	}
	return []fetcher.NewsItem{}, nil
}

// MockFinanceProvider is a mock implementation of fetcher.FinanceProvider.
// Unset functions return an empty JSON object (or "0" for the price).
type MockFinanceProvider struct {
	CurrentPriceFunc           func(ctx context.Context, ticker string) (string, error)
	CompanyInfoFunc            func(ctx context.Context, ticker string) (string, error)
	AnalystRecommendationsFunc func(ctx context.Context, ticker string) (string, error)
	CompanyNewsFunc            func(ctx context.Context, ticker string, count int) (string, error)
	Calls                      atomic.Int32
}

// CurrentPrice implements fetcher.FinanceProvider
func (m *MockFinanceProvider) CurrentPrice(ctx context.Context, ticker string) (string, error) {
	m.Calls.Add(1)
	if m.CurrentPriceFunc != nil {
		return m.CurrentPriceFunc(ctx, ticker)
	}
	return "0", nil
}

// CompanyInfo implements fetcher.FinanceProvider
func (m *MockFinanceProvider) CompanyInfo(ctx context.Context, ticker string) (string, error) {
	m.Calls.Add(1)
	if m.CompanyInfoFunc != nil {
		return m.CompanyInfoFunc(ctx, ticker)
	}
	return "{}", nil
}

// AnalystRecommendations implements fetcher.FinanceProvider
func (m *MockFinanceProvider) AnalystRecommendations(ctx context.Context, ticker string) (string, error) {
	m.Calls.Add(1)
	if m.AnalystRecommendationsFunc != nil {
		return m.AnalystRecommendationsFunc(ctx, ticker)
	}
	return "[]", nil
}

// CompanyNews implements fetcher.FinanceProvider
func (m *MockFinanceProvider) CompanyNews(ctx context.Context, ticker string, count int) (string, error) {
	m.Calls.Add(1)
	if m.CompanyNewsFunc != nil {
		return m.CompanyNewsFunc(ctx, ticker, count)
	}
	return "[]", nil
}

// MockSymbolSearcher is a mock implementation of fetcher.SymbolSearcher
type MockSymbolSearcher struct {
	SearchSymbolsFunc func(ctx context.Context, text string, limit int) ([]string, error)
	Calls             atomic.Int32
}

// SearchSymbols implements fetcher.SymbolSearcher
func (m *MockSymbolSearcher) SearchSymbols(ctx context.Context, text string, limit int) ([]string, error) {
	m.Calls.Add(1)
	if m.SearchSymbolsFunc != nil {
		return m.SearchSymbolsFunc(ctx, text, limit)
	}
	return nil, nil
}

// NewMockSymbolSearcher creates a symbol searcher with a fixed answer
func NewMockSymbolSearcher(symbols []string, err error) *MockSymbolSearcher {
	return &MockSymbolSearcher{
		SearchSymbolsFunc: func(ctx context.Context, text string, limit int) ([]string, error) {
			return symbols, err
		},
	}
}

// MockSummarizer is a mock implementation of summarizer.Summarizer
type MockSummarizer struct {
	SummarizeFunc func(ctx context.Context, text string) (string, error)
	Calls         atomic.Int32
}

// Summarize implements summarizer.Summarizer
func (m *MockSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	m.Calls.Add(1)
	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, text)
	}
	return "", nil
}

// NewMockSummarizer creates a summarizer with a fixed answer
func NewMockSummarizer(answer string, err error) *MockSummarizer {
	return &MockSummarizer{
		SummarizeFunc: func(ctx context.Context, text string) (string, error) {
			return answer, err
		},
	}
}
