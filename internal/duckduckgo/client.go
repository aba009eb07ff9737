package duckduckgo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"resty.dev/v3"

	"financeagent/internal/fetcher"
	"financeagent/internal/ratelimit"
)

var vqdPattern = regexp.MustCompile(`vqd=["']?([0-9-]+)`)

// NewsResponse represents the DuckDuckGo news.js response
type NewsResponse struct {
	Results []struct {
		Date    int64  `json:"date"`
		Title   string `json:"title"`
		Excerpt string `json:"excerpt"`
		URL     string `json:"url"`
		Image   string `json:"image"`
		Source  string `json:"source"`
	} `json:"results"`
}

// Client runs web and news searches against DuckDuckGo.
// It implements fetcher.WebSearcher and fetcher.NewsSearcher.
type Client struct {
	html    *resty.Client
	site    *resty.Client
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

// NewClient creates a new DuckDuckGo client. htmlURL serves the no-JS result
// pages used for web search; baseURL serves the token page and news.js.
func NewClient(htmlURL, baseURL string, opts fetcher.ClientOptions, limiter *ratelimit.Limiter) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		html:    fetcher.NewHTTPClient(htmlURL, opts),
		site:    fetcher.NewHTTPClient(baseURL, opts),
		limiter: limiter,
		logger:  logger.With("source", "duckduckgo"),
	}
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx, ratelimit.APIDuckDuckGo); err != nil {
		return fetcher.ClassifyTransportError(err)
	}
	return nil
}

// SearchWeb returns up to maxResults organic web results for query
func (c *Client) SearchWeb(ctx context.Context, query string, maxResults int) ([]fetcher.SearchHit, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.html.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		Get("/html/")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return nil, fetcher.NewValidationError(fmt.Sprintf("failed to parse search results: %v", err))
	}

	hits := make([]fetcher.SearchHit, 0, maxResults)
	doc.Find("div.result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(hits) >= maxResults {
			return false
		}
		if s.HasClass("result--ad") {
			return true
		}

		link := s.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}

		hits = append(hits, fetcher.SearchHit{
			Title: collapse(link.Text()),
			Href:  unwrapRedirect(href),
			Body:  collapse(s.Find(".result__snippet").First().Text()),
		})
		return true
	})

	return hits, nil
}

// SearchNews returns up to maxResults news stories for query.
// DuckDuckGo requires a per-query vqd token, so this first loads the
// search page to obtain it and then calls news.js.
func (c *Client) SearchNews(ctx context.Context, query string, maxResults int) ([]fetcher.NewsItem, error) {
	vqd, err := c.fetchVQD(ctx, query)
	if err != nil {
		return nil, err
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.site.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"l":     "wt-wt",
			"o":     "json",
			"noamp": "1",
			"q":     query,
			"vqd":   vqd,
			"p":     "-1",
		}).
		Get("/news.js")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}

	var result NewsResponse
	if err := json.Unmarshal([]byte(resp.String()), &result); err != nil {
		return nil, fetcher.NewValidationError(fmt.Sprintf("failed to parse news response: %v", err))
	}

	items := make([]fetcher.NewsItem, 0, maxResults)
	for _, r := range result.Results {
		if len(items) >= maxResults {
			break
		}
		item := fetcher.NewsItem{
			Title:  stripHTML(r.Title),
			Body:   stripHTML(r.Excerpt),
			URL:    r.URL,
			Image:  r.Image,
			Source: r.Source,
		}
		if r.Date > 0 {
			item.Date = time.Unix(r.Date, 0).UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}

	return items, nil
}

// fetchVQD loads the search landing page and extracts the vqd token
func (c *Client) fetchVQD(ctx context.Context, query string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}

	resp, err := c.site.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		Get("/")
	if err := checkResponse(resp, err); err != nil {
		return "", err
	}

	match := vqdPattern.FindStringSubmatch(resp.String())
	if len(match) < 2 {
		return "", fetcher.NewValidationError("vqd token not found in response")
	}

	c.logger.Debug("obtained vqd token", "query", query)
	return match[1], nil
}

// checkResponse extends fetcher.CheckResponse with DuckDuckGo's habit of
// answering throttled clients with 202 and a challenge page.
func checkResponse(resp *resty.Response, err error) error {
	if err := fetcher.CheckResponse(resp, err); err != nil {
		return err
	}
	if resp.StatusCode() == http.StatusAccepted {
		return fetcher.NewRateLimitError(resp.StatusCode())
	}
	return nil
}

// unwrapRedirect resolves DuckDuckGo's /l/?uddg= click-tracking links to the target URL
func unwrapRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}

	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if strings.HasPrefix(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	return href
}

func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapse(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapse(s)
	}
	return collapse(doc.Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
