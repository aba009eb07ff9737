package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"resty.dev/v3"

	"financeagent/internal/fetcher"
	"financeagent/internal/ratelimit"
)

const (
	profileModules        = "assetProfile,price,summaryDetail,defaultKeyStatistics,financialData"
	recommendationModules = "recommendationTrend"

	priceDecimals = 4
)

// Client fetches market data and symbol lookups from Yahoo Finance.
// It implements fetcher.FinanceProvider and fetcher.SymbolSearcher.
type Client struct {
	client  *resty.Client
	limiter *ratelimit.Limiter
	logger  *slog.Logger

	mu           sync.Mutex
	crumb        string
	crumbPending bool
}

// NewClient creates a new Yahoo Finance client
func NewClient(baseURL string, opts fetcher.ClientOptions, limiter *ratelimit.Limiter) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := fetcher.NewHTTPClient(baseURL, opts).
		SetHeader("Accept", "application/json")

	return &Client{
		client:  client,
		limiter: limiter,
		logger:  logger.With("source", "yahoo"),
	}
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx, ratelimit.APIYahoo); err != nil {
		return fetcher.ClassifyTransportError(err)
	}
	return nil
}

// CurrentPrice retrieves the last traded price
func (c *Client) CurrentPrice(ctx context.Context, ticker string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}

	var result ChartResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("symbol", ticker).
		SetQueryParams(map[string]string{
			"range":    "1d",
			"interval": "1d",
		}).
		SetResult(&result).
		Get("/v8/finance/chart/{symbol}")
	if err := fetcher.CheckResponse(resp, err); err != nil {
		return "", err
	}

	if e := result.Chart.Error; e != nil {
		return "", fetcher.NewValidationError(fmt.Sprintf("%s: %s", e.Code, e.Description))
	}
	if len(result.Chart.Result) == 0 || result.Chart.Result[0].Meta.RegularMarketPrice == nil {
		return "", fetcher.NewValidationError(fmt.Sprintf("price not found in response for %s", ticker))
	}

	price := decimal.NewFromFloat(*result.Chart.Result[0].Meta.RegularMarketPrice)
	return price.StringFixed(priceDecimals), nil
}

// CompanyInfo retrieves the company profile and key statistics as JSON
func (c *Client) CompanyInfo(ctx context.Context, ticker string) (string, error) {
	summary, err := c.quoteSummary(ctx, ticker, profileModules)
	if err != nil {
		return "", err
	}

	profile := CompanyProfile{Symbol: ticker}
	if p := summary.Price; p != nil {
		profile.Name = firstNonEmpty(p.LongName, p.ShortName)
		profile.Currency = p.Currency
		profile.CurrentPrice = p.RegularMarketPrice.Raw
		profile.MarketCap = p.MarketCap.Raw
	}
	if a := summary.AssetProfile; a != nil {
		profile.Sector = a.Sector
		profile.Industry = a.Industry
		profile.City = a.City
		profile.State = a.State
		profile.Country = a.Country
		profile.Website = a.Website
		profile.Employees = a.FullTimeEmployees
		profile.Summary = a.LongBusinessSummary
	}
	if s := summary.SummaryDetail; s != nil {
		profile.PERatio = s.TrailingPE.Raw
		profile.ForwardPE = s.ForwardPE.Raw
		profile.DividendYield = s.DividendYield.Raw
		profile.FiftyTwoWeekLow = s.FiftyTwoWeekLow.Raw
		profile.FiftyTwoWeekHigh = s.FiftyTwoWeekHigh.Raw
		profile.FiftyDayAverage = s.FiftyDayAverage.Raw
		profile.TwoHundredDayAverage = s.TwoHundredDayAverage.Raw
	}
	if k := summary.DefaultKeyStatistics; k != nil {
		profile.EPS = k.TrailingEps.Raw
		profile.PriceToBook = k.PriceToBook.Raw
	}
	if f := summary.FinancialData; f != nil {
		profile.AnalystRecommendation = f.RecommendationKey
		profile.TargetMeanPrice = f.TargetMeanPrice.Raw
		profile.AnalystOpinions = f.NumberOfAnalystOpinions.Raw
		profile.TotalRevenue = f.TotalRevenue.Raw
		profile.RevenueGrowth = f.RevenueGrowth.Raw
		profile.GrossMargins = f.GrossMargins.Raw
		profile.EBITDA = f.Ebitda.Raw
		profile.FreeCashflow = f.FreeCashflow.Raw
	}

	return encode(profile)
}

// AnalystRecommendations retrieves the analyst rating trend as a JSON array
func (c *Client) AnalystRecommendations(ctx context.Context, ticker string) (string, error) {
	summary, err := c.quoteSummary(ctx, ticker, recommendationModules)
	if err != nil {
		return "", err
	}

	if summary.RecommendationTrend == nil || len(summary.RecommendationTrend.Trend) == 0 {
		return "", fetcher.NewValidationError(fmt.Sprintf("no analyst recommendations for %s", ticker))
	}

	recs := make([]Recommendation, 0, len(summary.RecommendationTrend.Trend))
	for _, t := range summary.RecommendationTrend.Trend {
		recs = append(recs, Recommendation{
			Period:     t.Period,
			StrongBuy:  t.StrongBuy,
			Buy:        t.Buy,
			Hold:       t.Hold,
			Sell:       t.Sell,
			StrongSell: t.StrongSell,
		})
	}

	return encode(recs)
}

// CompanyNews retrieves up to count recent stories for the ticker as a JSON array
func (c *Client) CompanyNews(ctx context.Context, ticker string, count int) (string, error) {
	result, err := c.search(ctx, ticker, 0, count)
	if err != nil {
		return "", err
	}

	stories := make([]Story, 0, len(result.News))
	for _, n := range result.News {
		if len(stories) == count {
			break
		}
		story := Story{
			Title:     n.Title,
			Publisher: n.Publisher,
			Link:      n.Link,
		}
		if n.ProviderPublishTime > 0 {
			story.PublishedAt = time.Unix(n.ProviderPublishTime, 0).UTC().Format(time.RFC3339)
		}
		stories = append(stories, story)
	}

	return encode(stories)
}

// SearchSymbols resolves free text into at most limit ticker symbols
func (c *Client) SearchSymbols(ctx context.Context, text string, limit int) ([]string, error) {
	result, err := c.search(ctx, text, limit, 0)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(result.Quotes))
	symbols := make([]string, 0, len(result.Quotes))
	for _, q := range result.Quotes {
		if len(symbols) == limit {
			break
		}
		if q.Symbol == "" {
			continue
		}
		if _, ok := seen[q.Symbol]; ok {
			continue
		}
		seen[q.Symbol] = struct{}{}
		symbols = append(symbols, q.Symbol)
	}

	return symbols, nil
}

func (c *Client) search(ctx context.Context, query string, quotes, news int) (*SearchResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var result SearchResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":           query,
			"quotesCount": strconv.Itoa(quotes),
			"newsCount":   strconv.Itoa(news),
		}).
		SetResult(&result).
		Get("/v1/finance/search")
	if err := fetcher.CheckResponse(resp, err); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Client) quoteSummary(ctx context.Context, ticker, modules string) (*QuoteSummary, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	params := map[string]string{"modules": modules}
	if crumb := c.getCrumb(ctx); crumb != "" {
		params["crumb"] = crumb
	}

	var result QuoteSummaryResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("symbol", ticker).
		SetQueryParams(params).
		SetResult(&result).
		Get("/v10/finance/quoteSummary/{symbol}")
	if err := fetcher.CheckResponse(resp, err); err != nil {
		var fe *fetcher.FetchError
		if errors.As(err, &fe) && fe.StatusCode == http.StatusUnauthorized {
			// the crumb expired, fetch a new one next time
			c.resetCrumb()
		}
		return nil, err
	}

	if e := result.QuoteSummary.Error; e != nil {
		return nil, fetcher.NewValidationError(fmt.Sprintf("%s: %s", e.Code, e.Description))
	}
	if len(result.QuoteSummary.Result) == 0 {
		return nil, fetcher.NewValidationError(fmt.Sprintf("no quote summary in response for %s", ticker))
	}

	return &result.QuoteSummary.Result[0], nil
}

// getCrumb returns the session crumb quoteSummary expects, fetching it on
// first use. Failures are not fatal: the request is sent without a crumb.
// Callers arriving while another call is fetching the crumb do not wait for it.
func (c *Client) getCrumb(ctx context.Context) string {
	c.mu.Lock()
	if c.crumb != "" || c.crumbPending {
		crumb := c.crumb
		c.mu.Unlock()
		return crumb
	}
	c.crumbPending = true
	c.mu.Unlock()

	crumb := c.fetchCrumb(ctx)

	c.mu.Lock()
	c.crumbPending = false
	if crumb != "" {
		c.crumb = crumb
	}
	c.mu.Unlock()

	return crumb
}

func (c *Client) fetchCrumb(ctx context.Context) string {
	// the crumb is optional, so it never waits for rate budget
	if !c.limiter.Allow(ratelimit.APIYahoo) {
		c.logger.Debug("skipping crumb request, rate budget exhausted")
		return ""
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "text/plain").
		Get("/v1/test/getcrumb")
	if err := fetcher.CheckResponse(resp, err); err != nil {
		c.logger.Debug("crumb request failed", "error", err)
		return ""
	}

	crumb := strings.TrimSpace(resp.String())
	if crumb == "" || strings.ContainsAny(crumb, "<{ ") {
		c.logger.Debug("crumb response not usable", "length", len(crumb))
		return ""
	}
	return crumb
}

func (c *Client) resetCrumb() {
	c.mu.Lock()
	c.crumb = ""
	c.mu.Unlock()
}

func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fetcher.NewValidationError(fmt.Sprintf("failed to encode payload: %v", err))
	}
	return string(b), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
