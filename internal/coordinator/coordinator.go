package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/sourcegraph/conc/pool"

	"financeagent/internal/config"
	"financeagent/internal/evidence"
	"financeagent/internal/fetcher"
	"financeagent/internal/logger"
	"financeagent/internal/metrics"
	"financeagent/internal/query"
	"financeagent/internal/relevance"
	"financeagent/internal/ticker"
)

const (
	// DefaultWorkers bounds the number of source calls in flight
	DefaultWorkers = 10
	// DefaultCallTimeout bounds every individual source call
	DefaultCallTimeout = 15 * time.Second
)

// Source names used in metrics, logs and error messages
const (
	SourceWebNews         = "web_news"
	SourceWebSearch       = "web_search"
	SourcePrice           = "price"
	SourceCompanyInfo     = "company_info"
	SourceRecommendations = "analyst_recommendations"
	SourceCompanyNews     = "company_news"
)

// Sources are the collaborators the coordinator dispatches to.
// A nil source is reported as an error in its section when that section is requested.
type Sources struct {
	News    fetcher.NewsSearcher
	Web     fetcher.WebSearcher
	Finance fetcher.FinanceProvider
}

// Options tunes the coordinator. Zero values fall back to the defaults.
type Options struct {
	Workers     int
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// Coordinator fans a prompt out to the configured sources and assembles
// the results into an evidence bundle
type Coordinator struct {
	sources     Sources
	workers     int
	callTimeout time.Duration
	logger      *slog.Logger
}

// New creates a new Coordinator with the given sources
func New(sources Sources, opts Options) *Coordinator {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	return &Coordinator{
		sources:     sources,
		workers:     opts.Workers,
		callTimeout: opts.CallTimeout,
		logger:      opts.Logger,
	}
}

// unitResult is what one unit of work hands back. Exactly one field is set.
type unitResult struct {
	news   *evidence.Section[fetcher.NewsItem]
	search *evidence.Section[fetcher.SearchHit]
	finance bool
	symbol  string
	record  evidence.FinancialRecord
}

// Aggregate gathers web and finance evidence for the prompt and tickers.
//
// Options and tickers are validated before anything is dispatched; an
// invalid request returns a *config.ValidationError and an empty bundle.
// Tickers are sanitized, deduplicated and sorted. Source failures
// never fail the aggregation: each one is recorded in its own slot. When ctx
// is canceled the pending calls fail fast and Aggregate still returns a
// complete bundle.
func (c *Coordinator) Aggregate(ctx context.Context, prompt string, tickers []string, opts config.Request) (evidence.Bundle, error) {
	if err := opts.Validate(); err != nil {
		return evidence.Bundle{}, err
	}
	tickers, err := normalizeTickers(tickers)
	if err != nil {
		return evidence.Bundle{}, err
	}

	started := time.Now()
	metrics.Aggregations.Inc()

	queries := query.Build(prompt, tickers)
	keywords := relevance.Keywords(prompt)

	p := pool.NewWithResults[unitResult]().WithMaxGoroutines(c.workers)

	if opts.IncludeWebNews {
		p.Go(func() unitResult {
			return unitResult{news: c.fetchNews(ctx, queries.News, opts.NewsMaxResults, keywords)}
		})
	}
	if opts.IncludeWebSearch {
		p.Go(func() unitResult {
			return unitResult{search: c.fetchSearch(ctx, queries.Search, opts.SearchMaxResults, keywords)}
		})
	}
	if opts.IncludeFinance {
		for _, t := range tickers {
			p.Go(func() unitResult {
				return unitResult{finance: true, symbol: t, record: c.fetchFinance(ctx, t, opts.CompanyNewsCount)}
			})
		}
	}

	bundle := evidence.Bundle{
		Tickers: append([]string{}, tickers...),
		Queries: queries,
		Finance: make(map[string]evidence.FinancialRecord, len(tickers)),
	}

	for _, r := range p.Wait() {
		switch {
		case r.news != nil:
			bundle.Web.News = r.news
		case r.search != nil:
			bundle.Web.Search = r.search
		case r.finance:
			bundle.Finance[r.symbol] = r.record
		}
	}

	c.logger.Debug("aggregated evidence",
		"tickers", bundle.Tickers,
		"search_query", queries.Search,
		"news_query", queries.News,
		"duration", time.Since(started))

	return bundle, nil
}

// normalizeTickers sanitizes, dedupes and sorts a ticker set. A ticker that
// is empty after sanitization rejects the whole set.
func normalizeTickers(tickers []string) ([]string, error) {
	out := make([]string, 0, len(tickers))
	var problems []string
	for _, raw := range tickers {
		symbol := ticker.Sanitize(raw)
		if symbol == "" {
			problems = append(problems, fmt.Sprintf("ticker %q is empty after sanitization", raw))
			continue
		}
		out = append(out, symbol)
	}
	if len(problems) > 0 {
		return nil, &config.ValidationError{Problems: problems}
	}

	slices.Sort(out)
	return slices.Compact(out), nil
}

func (c *Coordinator) fetchNews(ctx context.Context, q string, limit int, keywords relevance.Set) *evidence.Section[fetcher.NewsItem] {
	if c.sources.News == nil {
		return evidence.FailedSection[fetcher.NewsItem](notConfigured("web news"))
	}

	items, err := call(ctx, c, SourceWebNews, func(ctx context.Context) ([]fetcher.NewsItem, error) {
		return c.sources.News.SearchNews(ctx, q, limit)
	})
	if err != nil {
		return evidence.FailedSection[fetcher.NewsItem](err)
	}
	return evidence.NewSection(items, relevance.Filter(items, keywords))
}

func (c *Coordinator) fetchSearch(ctx context.Context, q string, limit int, keywords relevance.Set) *evidence.Section[fetcher.SearchHit] {
	if c.sources.Web == nil {
		return evidence.FailedSection[fetcher.SearchHit](notConfigured("web search"))
	}

	hits, err := call(ctx, c, SourceWebSearch, func(ctx context.Context) ([]fetcher.SearchHit, error) {
		return c.sources.Web.SearchWeb(ctx, q, limit)
	})
	if err != nil {
		return evidence.FailedSection[fetcher.SearchHit](err)
	}
	return evidence.NewSection(hits, relevance.Filter(hits, keywords))
}

// fetchFinance runs the four finance lookups for one ticker. They are
// independent: each failure only affects its own field.
func (c *Coordinator) fetchFinance(ctx context.Context, symbol string, newsCount int) evidence.FinancialRecord {
	f := c.sources.Finance
	if f == nil {
		err := notConfigured("finance")
		return evidence.FinancialRecord{
			Price:                  fetcher.Fail[string](err),
			CompanyInfo:            fetcher.Fail[fetcher.Document](err),
			AnalystRecommendations: fetcher.Fail[fetcher.Document](err),
			CompanyNews:            fetcher.Fail[fetcher.Document](err),
		}
	}

	document := func(source string, fn func(context.Context) (string, error)) fetcher.Result[fetcher.Document] {
		text, err := call(ctx, c, source, fn)
		if err != nil {
			return fetcher.Fail[fetcher.Document](err)
		}
		return fetcher.Ok(fetcher.ParseDocument(text))
	}

	price, err := call(ctx, c, SourcePrice, func(ctx context.Context) (string, error) {
		return f.CurrentPrice(ctx, symbol)
	})

	return evidence.FinancialRecord{
		Price: fetcher.From(price, err),
		CompanyInfo: document(SourceCompanyInfo, func(ctx context.Context) (string, error) {
			return f.CompanyInfo(ctx, symbol)
		}),
		AnalystRecommendations: document(SourceRecommendations, func(ctx context.Context) (string, error) {
			return f.AnalystRecommendations(ctx, symbol)
		}),
		CompanyNews: document(SourceCompanyNews, func(ctx context.Context) (string, error) {
			return f.CompanyNews(ctx, symbol, newsCount)
		}),
	}
}

// call runs one source call under the per-call timeout. A canceled parent
// context fails the call without invoking the source, and a panic inside
// the source is converted into an error.
func call[T any](ctx context.Context, c *Coordinator, source string, fn func(context.Context) (T, error)) (value T, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			var zero T
			value = zero
			err = fetcher.NewUnknownError(fmt.Sprintf("panic: %v", r))
		}
		metrics.ObserveSourceCall(source, started, err)
		if err != nil {
			c.logger.Debug("source call failed", "source", source, "error", err)
		}
	}()

	if err := ctx.Err(); err != nil {
		return value, fetcher.ClassifyTransportError(err)
	}

	value, err = fn(ctx)
	if err != nil && ctx.Err() != nil {
		err = fetcher.ClassifyTransportError(err)
	}
	return value, err
}

func notConfigured(source string) error {
	return errors.New(source + " source not configured")
}
