package coordinator

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"financeagent/internal/config"
	"financeagent/internal/fetcher"
	"financeagent/internal/testutil"
)

func allSources() (*testutil.MockNewsSearcher, *testutil.MockWebSearcher, *testutil.MockFinanceProvider) {
	news := &testutil.MockNewsSearcher{
		SearchNewsFunc: func(ctx context.Context, query string, maxResults int) ([]fetcher.NewsItem, error) {
			return []fetcher.NewsItem{
				{Title: "Microsoft cloud revenue jumps", Body: "Azure growth", URL: "https://news.example.com/1"},
				{Title: "Oil slips", Body: "Brent lower", URL: "https://news.example.com/2"},
			}, nil
		},
	}
	web := &testutil.MockWebSearcher{
		SearchWebFunc: func(ctx context.Context, query string, maxResults int) ([]fetcher.SearchHit, error) {
			return []fetcher.SearchHit{{Title: "MSFT quote", Href: "https://finance.example.com/msft", Body: "Microsoft stock"}}, nil
		},
	}
	finance := &testutil.MockFinanceProvider{
		CurrentPriceFunc: func(ctx context.Context, ticker string) (string, error) {
			return "415.2300", nil
		},
		CompanyInfoFunc: func(ctx context.Context, ticker string) (string, error) {
			return `{"symbol": "` + ticker + `"}`, nil
		},
	}
	return news, web, finance
}

func TestNew(t *testing.T) {
	coord := New(Sources{}, Options{})
	if coord == nil {
		t.Fatal("New() returned nil")
	}
	if coord.workers != DefaultWorkers {
		t.Errorf("workers = %d, want %d", coord.workers, DefaultWorkers)
	}
	if coord.callTimeout != DefaultCallTimeout {
		t.Errorf("callTimeout = %v, want %v", coord.callTimeout, DefaultCallTimeout)
	}
}

func TestAggregate_Success(t *testing.T) {
	news, web, finance := allSources()
	coord := New(Sources{News: news, Web: web, Finance: finance}, Options{})

	bundle, err := coord.Aggregate(context.Background(), "Microsoft outlook", []string{"MSFT"}, config.DefaultRequest())
	if err != nil {
		t.Fatalf("Aggregate() returned unexpected error: %v", err)
	}

	if bundle.Queries.Search != "Microsoft outlook" || bundle.Queries.News != "Microsoft outlook news" {
		t.Errorf("Queries = %+v", bundle.Queries)
	}

	if bundle.Web.News == nil || !bundle.Web.News.Result.IsOk() {
		t.Fatalf("Web.News = %+v, want success", bundle.Web.News)
	}
	if got := len(bundle.Web.News.Result.Value); got != 2 {
		t.Errorf("len(news) = %d, want 2", got)
	}
	if got := bundle.Web.News.Filtered; len(got) != 1 || got[0].Title != "Microsoft cloud revenue jumps" {
		t.Errorf("news_filtered = %+v, want only the Microsoft story", got)
	}

	record, ok := bundle.Finance["MSFT"]
	if !ok {
		t.Fatal("Finance[MSFT] missing")
	}
	if record.Price.Value != "415.2300" {
		t.Errorf("price = %q", record.Price.Value)
	}
	if !record.CompanyInfo.Value.IsJSON() {
		t.Errorf("company_info should be parsed JSON, got %+v", record.CompanyInfo.Value)
	}
	if record.Failures() != 0 {
		t.Errorf("Failures() = %d, want 0", record.Failures())
	}
}

func TestAggregate_PartialFinanceFailure(t *testing.T) {
	news, web, finance := allSources()
	finance.CompanyInfoFunc = func(ctx context.Context, ticker string) (string, error) {
		return "", fetcher.NewServerError(503)
	}
	finance.CompanyNewsFunc = func(ctx context.Context, ticker string, count int) (string, error) {
		return "No news found for MSFT", nil
	}

	coord := New(Sources{News: news, Web: web, Finance: finance}, Options{})
	bundle, err := coord.Aggregate(context.Background(), "MSFT", []string{"MSFT"}, config.DefaultRequest())
	if err != nil {
		t.Fatalf("Aggregate() returned unexpected error: %v", err)
	}

	out, err := bundle.JSON()
	if err != nil {
		t.Fatalf("JSON() error: %v", err)
	}
	s := string(out)

	for _, want := range []string{
		`"price": "415.2300"`,
		`"company_info_error": "server error (status 503): server returned an error"`,
		`"analyst_recommendations": []`,
		`"company_news": "No news found for MSFT"`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("bundle JSON missing %s:\n%s", want, s)
		}
	}
	if strings.Contains(s, `"company_info": `) {
		t.Errorf("failed field must only appear as an error:\n%s", s)
	}
}

func TestAggregate_WebFailureIsolated(t *testing.T) {
	news, web, finance := allSources()
	news.SearchNewsFunc = func(ctx context.Context, query string, maxResults int) ([]fetcher.NewsItem, error) {
		return nil, fetcher.NewRateLimitError(429)
	}

	coord := New(Sources{News: news, Web: web, Finance: finance}, Options{})
	bundle, err := coord.Aggregate(context.Background(), "MSFT", []string{"MSFT"}, config.DefaultRequest())
	if err != nil {
		t.Fatalf("Aggregate() returned unexpected error: %v", err)
	}

	if got := bundle.Web.News.Result.Err; got != "rate_limit error (status 429): rate limit exceeded" {
		t.Errorf("news error = %q", got)
	}
	if !bundle.Web.Search.Result.IsOk() {
		t.Errorf("search failed: %q", bundle.Web.Search.Result.Err)
	}
	if bundle.Finance["MSFT"].Failures() != 0 {
		t.Error("finance affected by a web failure")
	}
}

func TestAggregate_AllSourcesDisabled(t *testing.T) {
	news, web, finance := allSources()
	coord := New(Sources{News: news, Web: web, Finance: finance}, Options{})

	opts := config.DefaultRequest()
	opts.IncludeWebNews = false
	opts.IncludeWebSearch = false
	opts.IncludeFinance = false

	bundle, err := coord.Aggregate(context.Background(), "Compare Apple and Microsoft", []string{"AAPL", "MSFT"}, opts)
	if err != nil {
		t.Fatalf("Aggregate() returned unexpected error: %v", err)
	}

	calls := news.Calls.Load() + web.Calls.Load() + finance.Calls.Load()
	if calls != 0 {
		t.Errorf("sources called %d times, want 0", calls)
	}

	out, _ := bundle.JSON()
	want := `{
  "tickers": [
    "AAPL",
    "MSFT"
  ],
  "queries": {
    "search": "Compare Apple and Microsoft",
    "news": "Compare Apple and Microsoft news"
  },
  "web": {},
  "finance": {}
}`
	if string(out) != want {
		t.Errorf("bundle = %s\nwant %s", out, want)
	}
}

func TestAggregate_InvalidOptions(t *testing.T) {
	news, web, finance := allSources()
	coord := New(Sources{News: news, Web: web, Finance: finance}, Options{})

	opts := config.DefaultRequest()
	opts.NewsMaxResults = 11

	_, err := coord.Aggregate(context.Background(), "MSFT", []string{"MSFT"}, opts)

	var ve *config.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Aggregate() error = %v, want *config.ValidationError", err)
	}
	if calls := news.Calls.Load() + web.Calls.Load() + finance.Calls.Load(); calls != 0 {
		t.Errorf("sources called %d times before validation failed", calls)
	}
}

func TestAggregate_SourcesNotConfigured(t *testing.T) {
	coord := New(Sources{}, Options{})

	bundle, err := coord.Aggregate(context.Background(), "AAPL", []string{"AAPL"}, config.DefaultRequest())
	if err != nil {
		t.Fatalf("Aggregate() returned unexpected error: %v", err)
	}

	if got := bundle.Web.News.Result.Err; got != "web news source not configured" {
		t.Errorf("news error = %q", got)
	}
	if got := bundle.Web.Search.Result.Err; got != "web search source not configured" {
		t.Errorf("search error = %q", got)
	}
	if got := bundle.Finance["AAPL"].Price.Err; got != "finance source not configured" {
		t.Errorf("price error = %q", got)
	}
}

func TestAggregate_PanicRecovered(t *testing.T) {
	news, web, finance := allSources()
	finance.AnalystRecommendationsFunc = func(ctx context.Context, ticker string) (string, error) {
		panic("boom")
	}

	coord := New(Sources{News: news, Web: web, Finance: finance}, Options{})
	bundle, err := coord.Aggregate(context.Background(), "AAPL", []string{"AAPL"}, config.DefaultRequest())
	if err != nil {
		t.Fatalf("Aggregate() returned unexpected error: %v", err)
	}

	record := bundle.Finance["AAPL"]
	if got := record.AnalystRecommendations.Err; got != "unknown error: panic: boom" {
		t.Errorf("analyst_recommendations error = %q", got)
	}
	if !record.Price.IsOk() || !record.CompanyNews.IsOk() {
		t.Error("a panic in one field affected the others")
	}
}

func TestAggregate_CallTimeout(t *testing.T) {
	news, web, finance := allSources()
	finance.CurrentPriceFunc = func(ctx context.Context, ticker string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	coord := New(Sources{News: news, Web: web, Finance: finance}, Options{CallTimeout: 20 * time.Millisecond})

	start := time.Now()
	bundle, err := coord.Aggregate(context.Background(), "AAPL", []string{"AAPL"}, config.DefaultRequest())
	if err != nil {
		t.Fatalf("Aggregate() returned unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Aggregate() took %v, the call timeout was not applied", elapsed)
	}

	record := bundle.Finance["AAPL"]
	if got := record.Price.Err; got != "timeout error: request timed out" {
		t.Errorf("price error = %q", got)
	}
	if !record.CompanyInfo.IsOk() {
		t.Errorf("company_info failed: %q", record.CompanyInfo.Err)
	}
}

func TestAggregate_CanceledContext(t *testing.T) {
	news, web, finance := allSources()
	coord := New(Sources{News: news, Web: web, Finance: finance}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bundle, err := coord.Aggregate(ctx, "AAPL and MSFT", []string{"AAPL", "MSFT"}, config.DefaultRequest())
	if err != nil {
		t.Fatalf("Aggregate() returned unexpected error: %v", err)
	}

	if calls := news.Calls.Load() + web.Calls.Load() + finance.Calls.Load(); calls != 0 {
		t.Errorf("sources called %d times after cancellation", calls)
	}
	if bundle.Web.News == nil || bundle.Web.News.Result.IsOk() {
		t.Error("news section should record the cancellation")
	}
	if len(bundle.Finance) != 2 {
		t.Fatalf("len(Finance) = %d, want a record per ticker", len(bundle.Finance))
	}
	for ticker, record := range bundle.Finance {
		if record.Failures() != 4 {
			t.Errorf("%s: Failures() = %d, want 4", ticker, record.Failures())
		}
		if record.Price.Err != "unknown error: request canceled" {
			t.Errorf("%s: price error = %q", ticker, record.Price.Err)
		}
	}
}

func TestAggregate_DeterministicUnderJitter(t *testing.T) {
	jitter := func() {
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
	}

	news := &testutil.MockNewsSearcher{
		SearchNewsFunc: func(ctx context.Context, query string, maxResults int) ([]fetcher.NewsItem, error) {
			jitter()
			return []fetcher.NewsItem{{Title: "Apple and Nvidia rally"}, {Title: "Rates"}}, nil
		},
	}
	web := &testutil.MockWebSearcher{
		SearchWebFunc: func(ctx context.Context, query string, maxResults int) ([]fetcher.SearchHit, error) {
			jitter()
			return nil, errors.New("search unavailable")
		},
	}
	finance := &testutil.MockFinanceProvider{
		CurrentPriceFunc: func(ctx context.Context, ticker string) (string, error) {
			jitter()
			return "100.0000", nil
		},
		CompanyInfoFunc: func(ctx context.Context, ticker string) (string, error) {
			jitter()
			if ticker == "NVDA" {
				return "", fetcher.NewClientError(404, "not found")
			}
			return `{"symbol": "` + ticker + `", "sector": "Technology"}`, nil
		},
		CompanyNewsFunc: func(ctx context.Context, ticker string, count int) (string, error) {
			jitter()
			return `[{"title": "` + ticker + ` story"}]`, nil
		},
	}

	coord := New(Sources{News: news, Web: web, Finance: finance}, Options{Workers: 4})
	tickers := []string{"AAPL", "AMD", "MSFT", "NVDA", "TSLA"}

	var first []byte
	for i := 0; i < 8; i++ {
		bundle, err := coord.Aggregate(context.Background(), "Apple Nvidia outlook", tickers, config.DefaultRequest())
		if err != nil {
			t.Fatalf("Aggregate() returned unexpected error: %v", err)
		}
		out, err := bundle.JSON()
		if err != nil {
			t.Fatalf("JSON() error: %v", err)
		}
		if first == nil {
			first = out
			continue
		}
		if string(out) != string(first) {
			t.Fatalf("run %d produced different bytes:\n%s\nvs\n%s", i, out, first)
		}
	}
}

func TestAggregate_BoundedConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	track := func() func() {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		return func() { active.Add(-1) }
	}

	finance := &testutil.MockFinanceProvider{
		CurrentPriceFunc: func(ctx context.Context, ticker string) (string, error) {
			defer track()()
			return "1.0000", nil
		},
	}
	news := &testutil.MockNewsSearcher{
		SearchNewsFunc: func(ctx context.Context, query string, maxResults int) ([]fetcher.NewsItem, error) {
			defer track()()
			return nil, nil
		},
	}

	coord := New(Sources{News: news, Finance: finance}, Options{Workers: 2})
	opts := config.DefaultRequest()
	opts.IncludeWebSearch = false
	opts.MaxTickers = 12

	tickers := []string{"A1", "A2", "A3", "A4", "A5", "A6", "A7", "A8"}
	bundle, err := coord.Aggregate(context.Background(), "basket", tickers, opts)
	if err != nil {
		t.Fatalf("Aggregate() returned unexpected error: %v", err)
	}

	if got := peak.Load(); got > 2 || got < 1 {
		t.Errorf("peak concurrency = %d, want between 1 and 2", got)
	}
	if len(bundle.Finance) != len(tickers) {
		t.Errorf("len(Finance) = %d, want %d", len(bundle.Finance), len(tickers))
	}
}

func TestAggregate_NoTickers(t *testing.T) {
	news, web, finance := allSources()
	coord := New(Sources{News: news, Web: web, Finance: finance}, Options{})

	bundle, err := coord.Aggregate(context.Background(), "market mood", nil, config.DefaultRequest())
	if err != nil {
		t.Fatalf("Aggregate() returned unexpected error: %v", err)
	}

	if finance.Calls.Load() != 0 {
		t.Error("finance called without tickers")
	}
	if bundle.Tickers == nil || len(bundle.Tickers) != 0 {
		t.Errorf("Tickers = %#v, want empty non-nil", bundle.Tickers)
	}
	if bundle.Queries.Search != "market mood company" {
		t.Errorf("Search query = %q", bundle.Queries.Search)
	}
}

func TestAggregate_CompanyNewsFailureKeepsPrice(t *testing.T) {
	news, web, finance := allSources()
	finance.CompanyNewsFunc = func(ctx context.Context, ticker string, count int) (string, error) {
		return "", fetcher.NewServerError(502)
	}

	coord := New(Sources{News: news, Web: web, Finance: finance}, Options{})
	bundle, err := coord.Aggregate(context.Background(), "MSFT", []string{"MSFT"}, config.DefaultRequest())
	if err != nil {
		t.Fatalf("Aggregate() returned unexpected error: %v", err)
	}

	record := bundle.Finance["MSFT"]
	if !record.Price.IsOk() || record.Price.Value != "415.2300" {
		t.Errorf("price = %+v, want 415.2300", record.Price)
	}
	if record.CompanyNews.IsOk() {
		t.Error("company news should have failed")
	}

	out, err := bundle.JSON()
	if err != nil {
		t.Fatalf("JSON() error: %v", err)
	}
	s := string(out)
	for _, want := range []string{
		`"price": "415.2300"`,
		`"company_news_error": "server error (status 502): server returned an error"`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("bundle JSON missing %s:\n%s", want, s)
		}
	}
	if strings.Contains(s, `"company_news": `) {
		t.Errorf("failed field must only appear as an error:\n%s", s)
	}
}

func TestAggregate_RejectsMalformedTickers(t *testing.T) {
	news, web, finance := allSources()
	coord := New(Sources{News: news, Web: web, Finance: finance}, Options{})

	bundle, err := coord.Aggregate(context.Background(), "x", []string{"", "msft", "MSFT"}, config.DefaultRequest())

	var ve *config.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Aggregate() error = %v, want *config.ValidationError", err)
	}
	if len(ve.Problems) != 1 || !strings.Contains(ve.Problems[0], `ticker ""`) {
		t.Errorf("Problems = %v", ve.Problems)
	}
	if len(bundle.Tickers) != 0 || len(bundle.Finance) != 0 {
		t.Errorf("bundle = %+v, want empty", bundle)
	}
	if n := news.Calls.Load() + web.Calls.Load() + finance.Calls.Load(); n != 0 {
		t.Errorf("%d source calls dispatched for an invalid ticker set", n)
	}
}

func TestAggregate_NormalizesTickers(t *testing.T) {
	_, _, finance := allSources()
	coord := New(Sources{Finance: finance}, Options{})

	opts := config.DefaultRequest()
	opts.IncludeWebNews = false
	opts.IncludeWebSearch = false

	bundle, err := coord.Aggregate(context.Background(), "x", []string{"msft", "MSFT", "$aapl", "MSFT"}, opts)
	if err != nil {
		t.Fatalf("Aggregate() returned unexpected error: %v", err)
	}

	if got := strings.Join(bundle.Tickers, ","); got != "AAPL,MSFT" {
		t.Errorf("Tickers = %v, want [AAPL MSFT]", bundle.Tickers)
	}
	if len(bundle.Finance) != 2 {
		t.Errorf("len(Finance) = %d, want 2", len(bundle.Finance))
	}
	for _, symbol := range []string{"AAPL", "MSFT"} {
		if _, ok := bundle.Finance[symbol]; !ok {
			t.Errorf("Finance[%s] missing", symbol)
		}
	}
	if got := finance.Calls.Load(); got != 8 {
		t.Errorf("finance calls = %d, want 8 (four per ticker)", got)
	}
}
