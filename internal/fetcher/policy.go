package fetcher

import (
	"context"
	"time"

	"jobscout/internal/config"
	"jobscout/pkg/utils"
)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy parameterises retries for one candidate URL
type Policy struct {
	// NetworkRetries is how many times a candidate is retried after a timeout or transport failure
	NetworkRetries int
	NetworkDelay   time.Duration
	// RateLimitRetries is how many times a candidate is retried after the provider refuses it
	RateLimitRetries int
	RateLimitDelay   time.Duration
	Sleep            SleepFunc
}

// DefaultPolicy retries each failure class once: 5s after a network error, 60s after a provider rate limit
func DefaultPolicy() Policy {
	return Policy{
		NetworkRetries:   1,
		NetworkDelay:     5 * time.Second,
		RateLimitRetries: 1,
		RateLimitDelay:   60 * time.Second,
		Sleep:            utils.SleepContext,
	}
}

// ZeroDelayPolicy keeps the attempt counts of DefaultPolicy without waiting
func ZeroDelayPolicy() Policy {
	p := DefaultPolicy()
	p.NetworkDelay = 0
	p.RateLimitDelay = 0
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

// PolicyFromConfig applies configured delays to DefaultPolicy
func PolicyFromConfig(cfg *config.Config) Policy {
	p := DefaultPolicy()
	if cfg.Scraper.NetworkRetryDelay > 0 {
		p.NetworkDelay = cfg.Scraper.NetworkRetryDelay
	}
	if cfg.Scraper.RateLimitRetryDelay > 0 {
		p.RateLimitDelay = cfg.Scraper.RateLimitRetryDelay
	}
	return p
}
