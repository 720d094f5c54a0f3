package workers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"jobscout/internal/config"
	"jobscout/internal/logging"
	"jobscout/internal/logging/types"
	"jobscout/internal/scraper"
)

// DomainLimiter paces requests to a single domain
type DomainLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	requests int64
	failures int64
	mu       sync.RWMutex
}

// CircuitBreaker stops hammering a domain that keeps failing
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration
	failureCount int
	lastFailTime time.Time
	state        CircuitState
	mu           sync.Mutex
}

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// ErrCircuitOpen is returned while a domain's breaker is open
var ErrCircuitOpen = scraper.ErrCircuitOpen

// LimiterOptions configures a RateLimiter
type LimiterOptions struct {
	RequestsPerSecond float64
	Burst             int
	MaxFailures       int
	ResetTimeout      time.Duration
	Logger            types.Logger
}

// RateLimiter manages rate limiting and circuit breaking per domain
type RateLimiter struct {
	opts            LimiterOptions
	domainLimiters  map[string]*DomainLimiter
	circuitBreakers map[string]*CircuitBreaker
	mu              sync.Mutex
	logger          types.Logger
	now             func() time.Time
}

// NewRateLimiter creates a new rate limiter instance
func NewRateLimiter(opts LimiterOptions) *RateLimiter {
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 0.5
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 5
	}
	if opts.ResetTimeout <= 0 {
		opts.ResetTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetGlobalLogger()
	}

	return &RateLimiter{
		opts:            opts,
		domainLimiters:  make(map[string]*DomainLimiter),
		circuitBreakers: make(map[string]*CircuitBreaker),
		logger:          opts.Logger.WithField("component", "rate_limiter"),
		now:             time.Now,
	}
}

// Wait blocks until a request to domain may proceed, or returns ErrCircuitOpen
func (rl *RateLimiter) Wait(ctx context.Context, domain string) error {
	domain = strings.ToLower(domain)

	rl.mu.Lock()
	if !rl.isCircuitClosed(domain) {
		rl.mu.Unlock()
		rl.logger.Debug("Request rejected by circuit breaker", map[string]interface{}{"domain": domain})
		return fmt.Errorf("%w for %s", ErrCircuitOpen, domain)
	}
	limiter := rl.getDomainLimiter(domain)
	rl.mu.Unlock()

	if err := limiter.limiter.Wait(ctx); err != nil {
		return err
	}

	limiter.mu.Lock()
	limiter.requests++
	limiter.lastSeen = rl.now()
	limiter.mu.Unlock()
	return nil
}

// Admits reports whether the domain's breaker lets a request through
func (rl *RateLimiter) Admits(domain string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.isCircuitClosed(strings.ToLower(domain))
}

// RecordSuccess records a successful request for the domain
func (rl *RateLimiter) RecordSuccess(domain string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	domain = strings.ToLower(domain)
	cb, exists := rl.circuitBreakers[domain]
	if !exists {
		return
	}

	cb.mu.Lock()
	if cb.state == CircuitHalfOpen {
		rl.logger.Info("Circuit breaker closed after successful request", map[string]interface{}{"domain": domain})
	}
	cb.state = CircuitClosed
	cb.failureCount = 0
	cb.mu.Unlock()
}

// RecordFailure records a failed request for the domain
func (rl *RateLimiter) RecordFailure(domain string, err error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	domain = strings.ToLower(domain)

	if limiter, exists := rl.domainLimiters[domain]; exists {
		limiter.mu.Lock()
		limiter.failures++
		limiter.mu.Unlock()
	}

	cb := rl.getCircuitBreaker(domain)
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailTime = rl.now()

	if cb.state == CircuitHalfOpen || (cb.state == CircuitClosed && cb.failureCount >= cb.maxFailures) {
		cb.state = CircuitOpen
		rl.logger.Warn("Circuit breaker opened due to failures", map[string]interface{}{
			"domain":   domain,
			"failures": cb.failureCount,
			"error":    err.Error(),
		})
	}
}

func (rl *RateLimiter) getDomainLimiter(domain string) *DomainLimiter {
	if limiter, exists := rl.domainLimiters[domain]; exists {
		return limiter
	}

	limiter := &DomainLimiter{
		limiter:  rate.NewLimiter(rate.Limit(rl.opts.RequestsPerSecond), rl.opts.Burst),
		lastSeen: rl.now(),
	}
	rl.domainLimiters[domain] = limiter

	rl.logger.Debug("Created new domain rate limiter", map[string]interface{}{
		"domain": domain,
		"rate":   rl.opts.RequestsPerSecond,
		"burst":  rl.opts.Burst,
	})
	return limiter
}

func (rl *RateLimiter) getCircuitBreaker(domain string) *CircuitBreaker {
	if cb, exists := rl.circuitBreakers[domain]; exists {
		return cb
	}

	cb := &CircuitBreaker{
		maxFailures:  rl.opts.MaxFailures,
		resetTimeout: rl.opts.ResetTimeout,
		state:        CircuitClosed,
	}
	rl.circuitBreakers[domain] = cb
	return cb
}

// isCircuitClosed moves an open breaker to half-open once its timeout has passed
func (rl *RateLimiter) isCircuitClosed(domain string) bool {
	cb := rl.getCircuitBreaker(domain)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed, CircuitHalfOpen:
		return true
	case CircuitOpen:
		if rl.now().Sub(cb.lastFailTime) > cb.resetTimeout {
			cb.state = CircuitHalfOpen
			rl.logger.Info("Circuit breaker transitioned to half-open", map[string]interface{}{"domain": domain})
			return true
		}
		return false
	default:
		return false
	}
}

// GetDomainStats returns statistics for a specific domain
func (rl *RateLimiter) GetDomainStats(domain string) map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.domainStats(strings.ToLower(domain))
}

func (rl *RateLimiter) domainStats(domain string) map[string]interface{} {
	stats := make(map[string]interface{})

	if limiter, exists := rl.domainLimiters[domain]; exists {
		limiter.mu.RLock()
		stats["requests"] = limiter.requests
		stats["failures"] = limiter.failures
		stats["last_seen"] = limiter.lastSeen
		limiter.mu.RUnlock()
	}

	if cb, exists := rl.circuitBreakers[domain]; exists {
		cb.mu.Lock()
		stats["circuit_state"] = cb.state.String()
		stats["failure_count"] = cb.failureCount
		cb.mu.Unlock()
	}

	return stats
}

// GetAllStats returns statistics for all domains
func (rl *RateLimiter) GetAllStats() map[string]map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	all := make(map[string]map[string]interface{})
	for domain := range rl.domainLimiters {
		all[domain] = rl.domainStats(domain)
	}
	for domain := range rl.circuitBreakers {
		all[domain] = rl.domainStats(domain)
	}
	return all
}

// Cleanup removes limiters idle for longer than maxIdle
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-maxIdle)
	removed := 0

	for domain, limiter := range rl.domainLimiters {
		limiter.mu.RLock()
		lastSeen := limiter.lastSeen
		limiter.mu.RUnlock()

		if lastSeen.Before(cutoff) {
			delete(rl.domainLimiters, domain)
			removed++
		}
	}

	for domain, cb := range rl.circuitBreakers {
		cb.mu.Lock()
		idle := cb.state == CircuitClosed && cb.lastFailTime.Before(cutoff)
		cb.mu.Unlock()

		if idle {
			delete(rl.circuitBreakers, domain)
		}
	}

	if removed > 0 {
		rl.logger.Debug("Cleaned up unused rate limiters", map[string]interface{}{"removed_count": removed})
	}
	return removed
}

// String returns string representation of CircuitState
func (cs CircuitState) String() string {
	switch cs {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// extractDomainFromURL extracts the domain from a URL string
func extractDomainFromURL(urlStr string) string {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "unknown"
	}

	domain := parsedURL.Hostname()
	if domain == "" {
		return "unknown"
	}
	return strings.ToLower(domain)
}

// LimitedProvider paces every call to the wrapped provider per domain
type LimitedProvider struct {
	inner   scraper.Provider
	limiter *RateLimiter
}

// NewLimitedProvider wraps a provider with a limiter configured from cfg
func NewLimitedProvider(inner scraper.Provider, cfg *config.Config) *LimitedProvider {
	return WrapProvider(inner, NewRateLimiter(LimiterOptions{
		RequestsPerSecond: cfg.Scraper.RequestsPerSecond,
		Burst:             cfg.Scraper.Burst,
	}))
}

// WrapProvider wraps a provider with an existing limiter
func WrapProvider(inner scraper.Provider, limiter *RateLimiter) *LimitedProvider {
	return &LimitedProvider{inner: inner, limiter: limiter}
}

func (lp *LimitedProvider) Name() string { return lp.inner.Name() }

func (lp *LimitedProvider) Close() error { return lp.inner.Close() }

// Limiter exposes the underlying limiter for stats
func (lp *LimitedProvider) Limiter() *RateLimiter { return lp.limiter }

// Admits reports whether a request to rawURL would pass the domain's breaker.
// No request is made, but an expired open breaker moves to half-open.
func (lp *LimitedProvider) Admits(rawURL string) bool {
	return lp.limiter.Admits(extractDomainFromURL(rawURL))
}

// Fetch waits for the domain's turn, then delegates. Only transport failures count
// against the breaker. An open breaker returns scraper.ErrCircuitOpen without
// calling the wrapped provider.
func (lp *LimitedProvider) Fetch(ctx context.Context, rawURL string) (*scraper.Response, error) {
	domain := extractDomainFromURL(rawURL)

	if err := lp.limiter.Wait(ctx, domain); err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", scraper.ErrNetwork, err)
	}

	resp, err := lp.inner.Fetch(ctx, rawURL)
	switch {
	case err == nil:
		lp.limiter.RecordSuccess(domain)
	case errors.Is(err, scraper.ErrNetwork):
		lp.limiter.RecordFailure(domain, err)
	}
	return resp, err
}
