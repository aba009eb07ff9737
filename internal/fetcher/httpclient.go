package fetcher

import (
	"log/slog"
	"net/http"
	"time"

	"resty.dev/v3"
)

const (
	// Default retry configuration
	defaultRetryCount       = 2
	defaultRetryWaitTime    = 500 * time.Millisecond
	defaultRetryMaxWaitTime = 5 * time.Second
	defaultTimeout          = 10 * time.Second

	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// ClientOptions tunes the HTTP clients shared by the source packages.
// Zero values fall back to the package defaults; a negative RetryCount disables retries.
type ClientOptions struct {
	Timeout          time.Duration
	RetryCount       int
	RetryWaitTime    time.Duration
	RetryMaxWaitTime time.Duration
	UserAgent        string
	Logger           *slog.Logger
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	switch {
	case o.RetryCount < 0:
		o.RetryCount = 0
	case o.RetryCount == 0:
		o.RetryCount = defaultRetryCount
	}
	if o.RetryWaitTime <= 0 {
		o.RetryWaitTime = defaultRetryWaitTime
	}
	if o.RetryMaxWaitTime <= 0 {
		o.RetryMaxWaitTime = defaultRetryMaxWaitTime
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// NewHTTPClient creates a new HTTP client with a request timeout, retry logic and exponential backoff
func NewHTTPClient(baseURL string, opts ClientOptions) *resty.Client {
	opts = opts.withDefaults()

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWaitTime).
		SetRetryMaxWaitTime(opts.RetryMaxWaitTime).
		AddRetryConditions(retryCondition).
		AddRetryHooks(retryHook(opts.Logger))

	return client
}

// retryCondition determines whether a request should be retried based on the response and error
func retryCondition(r *resty.Response, err error) bool {
	// Retry on network errors
	if err != nil {
		return true
	}

	switch code := r.StatusCode(); {
	case code >= 500:
		return true
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return true
	default:
		return false
	}
}

// retryHook logs retry attempts for observability
func retryHook(logger *slog.Logger) resty.RetryHookFunc {
	return func(r *resty.Response, err error) {
		if err != nil {
			logger.Debug("retrying request due to error",
				"url", r.Request.URL,
				"attempt", r.Request.Attempt,
				"error", err.Error())
			return
		}

		logger.Debug("retrying request due to status code",
			"url", r.Request.URL,
			"attempt", r.Request.Attempt,
			"status_code", r.StatusCode())
	}
}

// CheckResponse turns the (response, error) pair returned by resty into a
// classified *FetchError, or nil when the request succeeded.
func CheckResponse(resp *resty.Response, err error) error {
	if err != nil {
		return ClassifyTransportError(err)
	}
	if !resp.IsSuccess() {
		return ClassifyHTTPError(resp.StatusCode())
	}
	return nil
}
