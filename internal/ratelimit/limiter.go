package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// API represents the different external providers we call
type API string

const (
	// APIDuckDuckGo represents the DuckDuckGo web and news endpoints
	APIDuckDuckGo API = "duckduckgo"
	// APIYahoo represents the Yahoo Finance endpoints
	APIYahoo API = "yahoo"
	// APIAnthropic represents the summarizer backend
	APIAnthropic API = "anthropic"
)

// Limiter manages rate limits for different providers.
// A nil *Limiter is valid and never blocks.
type Limiter struct {
	limiters map[API]*rate.Limiter
	mu       sync.RWMutex
}

// New creates a limiter from requests-per-second budgets.
// Providers with a non-positive budget are left unlimited.
func New(rps map[API]float64) *Limiter {
	l := &Limiter{
		limiters: make(map[API]*rate.Limiter, len(rps)),
	}
	for api, r := range rps {
		l.Set(api, r)
	}
	return l
}

// Unlimited returns a limiter that lets every request through
func Unlimited() *Limiter {
	return New(nil)
}

// Set installs or replaces the budget for a provider.
// The burst equals the whole-number part of the rate, at least 1.
func (l *Limiter) Set(api API, rps float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rps <= 0 {
		delete(l.limiters, api)
		return
	}

	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	l.limiters[api] = rate.NewLimiter(rate.Limit(rps), burst)
}

func (l *Limiter) get(api API) *rate.Limiter {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.limiters[api]
}

// Wait blocks until the rate limiter permits an event for the given provider.
// It returns an error if the context is canceled before the event can proceed.
func (l *Limiter) Wait(ctx context.Context, api API) error {
	limiter := l.get(api)
	if limiter == nil {
		// If no limiter exists for this provider, allow the request without limiting
		return ctx.Err()
	}

	return limiter.Wait(ctx)
}

// Allow reports whether an event for the given provider may happen now
func (l *Limiter) Allow(api API) bool {
	limiter := l.get(api)
	if limiter == nil {
		return true
	}

	return limiter.Allow()
}
