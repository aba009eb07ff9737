package yahoo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"financeagent/internal/fetcher"
	"financeagent/internal/ratelimit"
)

func newTestClient(url string) *Client {
	return NewClient(url, fetcher.ClientOptions{RetryCount: -1}, ratelimit.Unlimited())
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func TestNewClient(t *testing.T) {
	c := newTestClient("http://localhost")
	if c == nil {
		t.Fatal("NewClient() returned nil")
	}
	if c.client == nil {
		t.Error("client is nil")
	}
}

func TestClient_CurrentPrice_Success(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v8/finance/chart/AAPL" {
			t.Errorf("path = %q, want /v8/finance/chart/AAPL", r.URL.Path)
		}
		if got := r.URL.Query().Get("interval"); got != "1d" {
			t.Errorf("interval = %q, want 1d", got)
		}
		writeJSON(w, http.StatusOK, `{
			"chart": {
				"result": [{"meta": {"symbol": "AAPL", "currency": "USD", "regularMarketPrice": 178.23}}],
				"error": null
			}
		}`)
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	price, err := newTestClient(server.URL).CurrentPrice(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("CurrentPrice() returned unexpected error: %v", err)
	}

	if want := "178.2300"; price != want {
		t.Errorf("CurrentPrice() = %q, want %q", price, want)
	}
}

func TestClient_CurrentPrice_DifferentStocks(t *testing.T) {
	tests := []struct {
		ticker string
		price  string
		want   string
	}{
		{"AAPL", "178.23", "178.2300"},
		{"GOOGL", "142.5", "142.5000"},
		{"TCS.NS", "3890.05", "3890.0500"},
		{"TSLA", "250", "250.0000"},
	}

	for _, tt := range tests {
		t.Run(tt.ticker, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, `{"chart": {"result": [{"meta": {"symbol": "`+tt.ticker+`", "regularMarketPrice": `+tt.price+`}}]}}`)
			})

			server := httptest.NewServer(handler)
			defer server.Close()

			price, err := newTestClient(server.URL).CurrentPrice(context.Background(), tt.ticker)
			if err != nil {
				t.Fatalf("CurrentPrice() returned unexpected error: %v", err)
			}
			if price != tt.want {
				t.Errorf("CurrentPrice() = %q, want %q", price, tt.want)
			}
		})
	}
}

func TestClient_CurrentPrice_HTTPError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	_, err := newTestClient(server.URL).CurrentPrice(context.Background(), "AAPL")
	if err == nil {
		t.Fatal("CurrentPrice() expected error, got nil")
	}

	var fe *fetcher.FetchError
	if !asFetchError(err, &fe) || fe.Type != fetcher.ErrorTypeServer {
		t.Errorf("CurrentPrice() error = %v, want server FetchError", err)
	}
}

func TestClient_CurrentPrice_MissingPrice(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"chart": {"result": [{"meta": {"symbol": "AAPL"}}]}}`)
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	_, err := newTestClient(server.URL).CurrentPrice(context.Background(), "AAPL")
	if err == nil {
		t.Fatal("CurrentPrice() expected error for missing price, got nil")
	}

	expectedErrMsg := "validation error: price not found in response for AAPL"
	if err.Error() != expectedErrMsg {
		t.Errorf("CurrentPrice() error = %q, want %q", err.Error(), expectedErrMsg)
	}
}

func TestClient_CurrentPrice_ChartError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"chart": {"result": null, "error": {"code": "Not Found", "description": "No data found, symbol may be delisted"}}}`)
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	_, err := newTestClient(server.URL).CurrentPrice(context.Background(), "ZZZZ")
	if err == nil {
		t.Fatal("CurrentPrice() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "No data found") {
		t.Errorf("CurrentPrice() error = %q, want provider description", err.Error())
	}
}

func TestClient_CurrentPrice_ContextCancellation(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newTestClient(server.URL).CurrentPrice(ctx, "AAPL"); err == nil {
		t.Error("CurrentPrice() expected error for cancelled context, got nil")
	}
}

const quoteSummaryBody = `{
	"quoteSummary": {
		"result": [{
			"price": {
				"symbol": "MSFT",
				"longName": "Microsoft Corporation",
				"currency": "USD",
				"regularMarketPrice": {"raw": 415.23, "fmt": "415.23"},
				"marketCap": {"raw": 3090000000000, "fmt": "3.09T"}
			},
			"assetProfile": {
				"sector": "Technology",
				"industry": "Software - Infrastructure",
				"website": "https://www.microsoft.com",
				"country": "United States",
				"fullTimeEmployees": 221000
			},
			"summaryDetail": {
				"trailingPE": {"raw": 36.1, "fmt": "36.10"},
				"forwardPE": {}
			},
			"financialData": {
				"recommendationKey": "buy",
				"numberOfAnalystOpinions": {"raw": 45, "fmt": "45"}
			}
		}],
		"error": null
	}
}`

func TestClient_CompanyInfo_Success(t *testing.T) {
	var crumbCalls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/test/getcrumb":
			crumbCalls.Add(1)
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("abcCrumb123"))
		case "/v10/finance/quoteSummary/MSFT":
			if got := r.URL.Query().Get("crumb"); got != "abcCrumb123" {
				t.Errorf("crumb = %q, want abcCrumb123", got)
			}
			if got := r.URL.Query().Get("modules"); got != profileModules {
				t.Errorf("modules = %q, want %q", got, profileModules)
			}
			writeJSON(w, http.StatusOK, quoteSummaryBody)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	client := newTestClient(server.URL)
	for i := 0; i < 2; i++ {
		out, err := client.CompanyInfo(context.Background(), "MSFT")
		if err != nil {
			t.Fatalf("CompanyInfo() returned unexpected error: %v", err)
		}

		var profile CompanyProfile
		if err := json.Unmarshal([]byte(out), &profile); err != nil {
			t.Fatalf("CompanyInfo() returned invalid JSON %q: %v", out, err)
		}
		if profile.Name != "Microsoft Corporation" || profile.Sector != "Technology" {
			t.Errorf("profile = %+v", profile)
		}
		if profile.PERatio == nil || *profile.PERatio != 36.1 {
			t.Errorf("PERatio = %v, want 36.1", profile.PERatio)
		}
		if profile.ForwardPE != nil {
			t.Errorf("ForwardPE = %v, want nil for empty raw value", *profile.ForwardPE)
		}
		if profile.Employees == nil || *profile.Employees != 221000 {
			t.Errorf("Employees = %v, want 221000", profile.Employees)
		}
	}

	if got := crumbCalls.Load(); got != 1 {
		t.Errorf("crumb fetched %d times, want 1", got)
	}
}

func TestClient_CompanyInfo_WithoutCrumb(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/test/getcrumb" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.URL.Query().Has("crumb") {
			t.Error("crumb sent although crumb request failed")
		}
		writeJSON(w, http.StatusOK, quoteSummaryBody)
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	if _, err := newTestClient(server.URL).CompanyInfo(context.Background(), "MSFT"); err != nil {
		t.Fatalf("CompanyInfo() returned unexpected error: %v", err)
	}
}

func TestClient_CompanyInfo_NotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"quoteSummary": {"result": null, "error": {"code": "Not Found", "description": "Quote not found for ticker symbol: ZZZZ"}}}`)
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	_, err := newTestClient(server.URL).CompanyInfo(context.Background(), "ZZZZ")
	if err == nil {
		t.Fatal("CompanyInfo() expected error, got nil")
	}
	if want := "client error (status 404): client error: HTTP 404"; err.Error() != want {
		t.Errorf("CompanyInfo() error = %q, want %q", err.Error(), want)
	}
}

func TestClient_AnalystRecommendations(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{
			"quoteSummary": {"result": [{
				"recommendationTrend": {"trend": [
					{"period": "0m", "strongBuy": 11, "buy": 21, "hold": 6, "sell": 0, "strongSell": 0},
					{"period": "-1m", "strongBuy": 10, "buy": 22, "hold": 7, "sell": 1, "strongSell": 0}
				]}
			}]}
		}`)
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	out, err := newTestClient(server.URL).AnalystRecommendations(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("AnalystRecommendations() returned unexpected error: %v", err)
	}

	want := `[{"period":"0m","strong_buy":11,"buy":21,"hold":6,"sell":0,"strong_sell":0},` +
		`{"period":"-1m","strong_buy":10,"buy":22,"hold":7,"sell":1,"strong_sell":0}]`
	if out != want {
		t.Errorf("AnalystRecommendations() = %s, want %s", out, want)
	}
}

func TestClient_AnalystRecommendations_Empty(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"quoteSummary": {"result": [{}]}}`)
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	_, err := newTestClient(server.URL).AnalystRecommendations(context.Background(), "AAPL")
	if err == nil || err.Error() != "validation error: no analyst recommendations for AAPL" {
		t.Errorf("AnalystRecommendations() error = %v", err)
	}
}

func TestClient_CompanyNews(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "NVDA" || q.Get("newsCount") != "2" || q.Get("quotesCount") != "0" {
			t.Errorf("query = %v", q)
		}
		writeJSON(w, http.StatusOK, `{"news": [
			{"title": "Nvidia beats estimates", "publisher": "Reuters", "link": "https://example.com/a", "providerPublishTime": 1700000000},
			{"title": "Chip stocks rally", "publisher": "Bloomberg", "link": "https://example.com/b"},
			{"title": "Ignored third story", "link": "https://example.com/c"}
		]}`)
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	out, err := newTestClient(server.URL).CompanyNews(context.Background(), "NVDA", 2)
	if err != nil {
		t.Fatalf("CompanyNews() returned unexpected error: %v", err)
	}

	var stories []Story
	if err := json.Unmarshal([]byte(out), &stories); err != nil {
		t.Fatalf("CompanyNews() returned invalid JSON: %v", err)
	}
	if len(stories) != 2 {
		t.Fatalf("CompanyNews() returned %d stories, want 2", len(stories))
	}
	if stories[0].PublishedAt != "2023-11-14T22:13:20Z" {
		t.Errorf("PublishedAt = %q", stories[0].PublishedAt)
	}
	if stories[1].PublishedAt != "" {
		t.Errorf("PublishedAt = %q, want empty without timestamp", stories[1].PublishedAt)
	}
}

func TestClient_SearchSymbols(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "reliance industries" {
			t.Errorf("q = %q", got)
		}
		writeJSON(w, http.StatusOK, `{"quotes": [
			{"symbol": "RELIANCE.NS", "shortname": "RELIANCE INDS"},
			{"symbol": ""},
			{"symbol": "RELIANCE.NS"},
			{"symbol": "RELIANCE.BO"}
		]}`)
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	symbols, err := newTestClient(server.URL).SearchSymbols(context.Background(), "reliance industries", 5)
	if err != nil {
		t.Fatalf("SearchSymbols() returned unexpected error: %v", err)
	}

	want := []string{"RELIANCE.NS", "RELIANCE.BO"}
	if strings.Join(symbols, ",") != strings.Join(want, ",") {
		t.Errorf("SearchSymbols() = %v, want %v", symbols, want)
	}
}

func asFetchError(err error, target **fetcher.FetchError) bool {
	fe, ok := err.(*fetcher.FetchError)
	if ok {
		*target = fe
	}
	return ok
}
