package config

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"financeagent/internal/fetcher"
)

// Request holds the per-request aggregation options
type Request struct {
	IncludeWebNews   bool `mapstructure:"include_web_news" json:"include_web_news"`
	IncludeWebSearch bool `mapstructure:"include_web_search" json:"include_web_search"`
	IncludeFinance   bool `mapstructure:"include_finance" json:"include_finance"`
	NewsMaxResults   int  `mapstructure:"news_max_results" json:"news_max_results" validate:"min=1,max=10"`
	SearchMaxResults int  `mapstructure:"search_max_results" json:"search_max_results" validate:"min=1,max=10"`
	CompanyNewsCount int  `mapstructure:"company_news_count" json:"company_news_count" validate:"min=1,max=10"`
	MaxTickers       int  `mapstructure:"max_tickers" json:"max_tickers" validate:"min=1,max=12"`
}

// DefaultRequest returns the options used when a caller sets none
func DefaultRequest() Request {
	return Request{
		IncludeWebNews:   true,
		IncludeWebSearch: true,
		IncludeFinance:   true,
		NewsMaxResults:   5,
		SearchMaxResults: 5,
		CompanyNewsCount: 3,
		MaxTickers:       6,
	}
}

// Validate checks the option ranges and returns a *ValidationError
func (r Request) Validate() error {
	return check(r)
}

// Overrides is a partial Request as received from API clients.
// Nil fields keep the configured default.
type Overrides struct {
	IncludeWebNews   *bool `json:"include_web_news,omitempty"`
	IncludeWebSearch *bool `json:"include_web_search,omitempty"`
	IncludeFinance   *bool `json:"include_finance,omitempty"`
	NewsMaxResults   *int  `json:"news_max_results,omitempty"`
	SearchMaxResults *int  `json:"search_max_results,omitempty"`
	CompanyNewsCount *int  `json:"company_news_count,omitempty"`
	MaxTickers       *int  `json:"max_tickers,omitempty"`
}

// Apply returns base with every non-nil override applied
func (o *Overrides) Apply(base Request) Request {
	if o == nil {
		return base
	}
	if o.IncludeWebNews != nil {
		base.IncludeWebNews = *o.IncludeWebNews
	}
	if o.IncludeWebSearch != nil {
		base.IncludeWebSearch = *o.IncludeWebSearch
	}
	if o.IncludeFinance != nil {
		base.IncludeFinance = *o.IncludeFinance
	}
	if o.NewsMaxResults != nil {
		base.NewsMaxResults = *o.NewsMaxResults
	}
	if o.SearchMaxResults != nil {
		base.SearchMaxResults = *o.SearchMaxResults
	}
	if o.CompanyNewsCount != nil {
		base.CompanyNewsCount = *o.CompanyNewsCount
	}
	if o.MaxTickers != nil {
		base.MaxTickers = *o.MaxTickers
	}
	return base
}

// Config holds all configuration for the finance agent.
type Config struct {
	// Summarizer backend
	AnthropicAPIKey  string `mapstructure:"anthropic_api_key"`
	AnthropicModel   string `mapstructure:"anthropic_model" validate:"required"`
	AnthropicBaseURL string `mapstructure:"anthropic_base_url" validate:"omitempty,url"`
	SummaryMaxTokens int    `mapstructure:"summary_max_tokens" validate:"min=1"`

	// Base URLs for provider endpoints (configurable for testing)
	DuckDuckGoHTMLURL string `mapstructure:"duckduckgo_html_url" validate:"required,url"`
	DuckDuckGoBaseURL string `mapstructure:"duckduckgo_base_url" validate:"required,url"`
	YahooBaseURL      string `mapstructure:"yahoo_base_url" validate:"required,url"`

	// Timeouts and retries
	HTTPTimeout    time.Duration `mapstructure:"http_timeout" validate:"gt=0"`
	CallTimeout    time.Duration `mapstructure:"call_timeout" validate:"gt=0"`
	SummaryTimeout time.Duration `mapstructure:"summary_timeout" validate:"gt=0"`
	HTTPRetryCount int           `mapstructure:"http_retry_count" validate:"min=0,max=10"`

	// Concurrency and provider budgets (requests per second, 0 = unlimited)
	WorkerPoolSize int     `mapstructure:"worker_pool_size" validate:"min=1,max=64"`
	DuckDuckGoRPS  float64 `mapstructure:"duckduckgo_rps" validate:"gte=0"`
	YahooRPS       float64 `mapstructure:"yahoo_rps" validate:"gte=0"`
	AnthropicRPS   float64 `mapstructure:"anthropic_rps" validate:"gte=0"`

	ServerAddr string `mapstructure:"server_addr" validate:"required"`
	LogLevel   string `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	// Defaults for per-request options
	Defaults Request `mapstructure:",squash"`
}

// Validate checks the process configuration
func (c *Config) Validate() error {
	return check(c)
}

// ClientOptions returns the HTTP client settings for the provider clients
func (c *Config) ClientOptions(logger *slog.Logger) fetcher.ClientOptions {
	retries := c.HTTPRetryCount
	if retries == 0 {
		// zero means "use the default" to fetcher
		retries = -1
	}
	return fetcher.ClientOptions{
		Timeout:    c.HTTPTimeout,
		RetryCount: retries,
		Logger:     logger,
	}
}

var defaults = map[string]any{
	"anthropic_api_key":   "",
	"anthropic_model":     "claude-sonnet-4-5",
	"anthropic_base_url":  "",
	"summary_max_tokens":  1024,
	"duckduckgo_html_url": "https://html.duckduckgo.com",
	"duckduckgo_base_url": "https://duckduckgo.com",
	"yahoo_base_url":      "https://query2.finance.yahoo.com",
	"http_timeout":        10 * time.Second,
	"call_timeout":        15 * time.Second,
	"summary_timeout":     60 * time.Second,
	"http_retry_count":    2,
	"worker_pool_size":    10,
	"duckduckgo_rps":      1.0,
	"yahoo_rps":           5.0,
	"anthropic_rps":       0.0,
	"server_addr":         ":8080",
	"log_level":           "info",
	"include_web_news":    true,
	"include_web_search":  true,
	"include_finance":     true,
	"news_max_results":    5,
	"search_max_results":  5,
	"company_news_count":  3,
	"max_tickers":         6,
}

// flagKeys maps the flags registered by RegisterFlags to their config keys
var flagKeys = map[string]string{
	"log-level":   "log_level",
	"max-tickers": "max_tickers",
	"addr":        "server_addr",
}

// RegisterFlags adds the configuration flags to fs
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a config file (default: ./config.yaml or $HOME/.financeagent/config.yaml)")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.Int("max-tickers", 6, "maximum number of tickers to look up (1-12)")
	fs.String("addr", ":8080", "listen address for --serve")
}

// Load reads configuration from defaults, an optional config file,
// environment variables and command line flags, in increasing precedence.
//
// Every key can be set through the environment variable of the same name in
// upper case, e.g. ANTHROPIC_API_KEY, YAHOO_BASE_URL or CALL_TIMEOUT.
// flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	explicit := ""
	if flags != nil {
		if f := flags.Lookup("config"); f != nil {
			explicit = f.Value.String()
		}
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.financeagent")

		// Read config file (ignore if not found)
		_ = v.ReadInConfig()
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// ValidationError lists the settings or options that failed validation
type ValidationError struct {
	Problems []string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "mapstructure"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

func check(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validation failed: %w", err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describe(fe))
	}
	return &ValidationError{Problems: problems}
}

func describe(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s (got %v)", name, fe.Param(), fe.Value())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s (got %v)", name, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s (got %v)", name, fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got %v)", name, fe.Param(), fe.Value())
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "url":
		return fmt.Sprintf("%s must be a URL (got %v)", name, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", name, fe.Tag())
	}
}
