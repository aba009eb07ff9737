package yahoo

// apiError is the error object Yahoo embeds next to empty results
type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ChartResponse represents the Yahoo Finance chart API response
type ChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string   `json:"symbol"`
				Currency           string   `json:"currency"`
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
				PreviousClose      *float64 `json:"chartPreviousClose"`
			} `json:"meta"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"chart"`
}

// rawValue is Yahoo's {"raw": 1.23, "fmt": "1.23"} number wrapper.
// Missing values arrive as an empty object.
type rawValue struct {
	Raw *float64 `json:"raw"`
	Fmt string   `json:"fmt"`
}

// QuoteSummaryResponse represents the Yahoo Finance quoteSummary API response
// for the modules this client requests
type QuoteSummaryResponse struct {
	QuoteSummary struct {
		Result []QuoteSummary `json:"result"`
		Error  *apiError      `json:"error"`
	} `json:"quoteSummary"`
}

// QuoteSummary holds the requested quoteSummary modules
type QuoteSummary struct {
	AssetProfile *struct {
		Sector              string `json:"sector"`
		Industry            string `json:"industry"`
		Website             string `json:"website"`
		City                string `json:"city"`
		State               string `json:"state"`
		Country             string `json:"country"`
		FullTimeEmployees   *int64 `json:"fullTimeEmployees"`
		LongBusinessSummary string `json:"longBusinessSummary"`
	} `json:"assetProfile"`

	Price *struct {
		Symbol             string   `json:"symbol"`
		LongName           string   `json:"longName"`
		ShortName          string   `json:"shortName"`
		Currency           string   `json:"currency"`
		RegularMarketPrice rawValue `json:"regularMarketPrice"`
		MarketCap          rawValue `json:"marketCap"`
	} `json:"price"`

	SummaryDetail *struct {
		TrailingPE           rawValue `json:"trailingPE"`
		ForwardPE            rawValue `json:"forwardPE"`
		DividendYield        rawValue `json:"dividendYield"`
		FiftyTwoWeekLow      rawValue `json:"fiftyTwoWeekLow"`
		FiftyTwoWeekHigh     rawValue `json:"fiftyTwoWeekHigh"`
		FiftyDayAverage      rawValue `json:"fiftyDayAverage"`
		TwoHundredDayAverage rawValue `json:"twoHundredDayAverage"`
	} `json:"summaryDetail"`

	DefaultKeyStatistics *struct {
		TrailingEps rawValue `json:"trailingEps"`
		PriceToBook rawValue `json:"priceToBook"`
	} `json:"defaultKeyStatistics"`

	FinancialData *struct {
		RecommendationKey       string   `json:"recommendationKey"`
		TargetMeanPrice         rawValue `json:"targetMeanPrice"`
		NumberOfAnalystOpinions rawValue `json:"numberOfAnalystOpinions"`
		TotalRevenue            rawValue `json:"totalRevenue"`
		RevenueGrowth           rawValue `json:"revenueGrowth"`
		GrossMargins            rawValue `json:"grossMargins"`
		Ebitda                  rawValue `json:"ebitda"`
		FreeCashflow            rawValue `json:"freeCashflow"`
	} `json:"financialData"`

	RecommendationTrend *struct {
		Trend []struct {
			Period     string `json:"period"`
			StrongBuy  int    `json:"strongBuy"`
			Buy        int    `json:"buy"`
			Hold       int    `json:"hold"`
			Sell       int    `json:"sell"`
			StrongSell int    `json:"strongSell"`
		} `json:"trend"`
	} `json:"recommendationTrend"`
}

// SearchResponse represents the Yahoo Finance search API response
type SearchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		QuoteType string `json:"quoteType"`
		Exchange  string `json:"exchange"`
	} `json:"quotes"`
	News []struct {
		UUID                string `json:"uuid"`
		Title               string `json:"title"`
		Publisher           string `json:"publisher"`
		Link                string `json:"link"`
		ProviderPublishTime int64  `json:"providerPublishTime"`
		Type                string `json:"type"`
	} `json:"news"`
}

// CompanyProfile is the record CompanyInfo returns, encoded as JSON
type CompanyProfile struct {
	Name                  string   `json:"name,omitempty"`
	Symbol                string   `json:"symbol"`
	Currency              string   `json:"currency,omitempty"`
	CurrentPrice          *float64 `json:"current_price,omitempty"`
	MarketCap             *float64 `json:"market_cap,omitempty"`
	Sector                string   `json:"sector,omitempty"`
	Industry              string   `json:"industry,omitempty"`
	City                  string   `json:"city,omitempty"`
	State                 string   `json:"state,omitempty"`
	Country               string   `json:"country,omitempty"`
	Website               string   `json:"website,omitempty"`
	Employees             *int64   `json:"employees,omitempty"`
	Summary               string   `json:"summary,omitempty"`
	EPS                   *float64 `json:"eps,omitempty"`
	PERatio               *float64 `json:"pe_ratio,omitempty"`
	ForwardPE             *float64 `json:"forward_pe,omitempty"`
	PriceToBook           *float64 `json:"price_to_book,omitempty"`
	DividendYield         *float64 `json:"dividend_yield,omitempty"`
	FiftyTwoWeekLow       *float64 `json:"fifty_two_week_low,omitempty"`
	FiftyTwoWeekHigh      *float64 `json:"fifty_two_week_high,omitempty"`
	FiftyDayAverage       *float64 `json:"fifty_day_average,omitempty"`
	TwoHundredDayAverage  *float64 `json:"two_hundred_day_average,omitempty"`
	AnalystRecommendation string   `json:"analyst_recommendation,omitempty"`
	TargetMeanPrice       *float64 `json:"target_mean_price,omitempty"`
	AnalystOpinions       *float64 `json:"analyst_opinions,omitempty"`
	TotalRevenue          *float64 `json:"total_revenue,omitempty"`
	RevenueGrowth         *float64 `json:"revenue_growth,omitempty"`
	GrossMargins          *float64 `json:"gross_margins,omitempty"`
	EBITDA                *float64 `json:"ebitda,omitempty"`
	FreeCashflow          *float64 `json:"free_cashflow,omitempty"`
}

// Recommendation is one period of the analyst rating trend
type Recommendation struct {
	Period     string `json:"period"`
	StrongBuy  int    `json:"strong_buy"`
	Buy        int    `json:"buy"`
	Hold       int    `json:"hold"`
	Sell       int    `json:"sell"`
	StrongSell int    `json:"strong_sell"`
}

// Story is one company news item
type Story struct {
	Title       string `json:"title"`
	Publisher   string `json:"publisher,omitempty"`
	Link        string `json:"link"`
	PublishedAt string `json:"published_at,omitempty"`
}
