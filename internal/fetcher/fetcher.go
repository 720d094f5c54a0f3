// Package fetcher resolves a working career page for a company, trying the
// known URL first and then conventional paths, under the scrape quota.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jobscout/internal/logging"
	"jobscout/internal/logging/types"
	"jobscout/internal/scraper"
	"jobscout/pkg/models"
	"jobscout/pkg/utils"
)

// DefaultCareerPaths are appended to a company's base URL after its known career page
var DefaultCareerPaths = []string{"/careers", "/jobs", "/team", "/join-us"}

// admitter is implemented by providers that can refuse a URL locally, such as
// workers.LimitedProvider while its circuit breaker is open
type admitter interface {
	Admits(rawURL string) bool
}

// Reserver grants scrape budget; quota.Tracker implements it
type Reserver interface {
	Reserve(ctx context.Context, count int) (bool, error)
}

// CompanyUpdater persists the fetch side effects on a company
type CompanyUpdater interface {
	UpdateCareerPage(ctx context.Context, id int64, url string) error
	TouchLastScraped(ctx context.Context, id int64, at time.Time) error
}

// Options configures a Fetcher
type Options struct {
	Policy      Policy
	CareerPaths []string
	Clock       utils.Clock
	Logger      types.Logger
}

// Fetcher implements the career page fetch for one company at a time
type Fetcher struct {
	provider scraper.Provider
	quota    Reserver
	updater  CompanyUpdater
	policy   Policy
	paths    []string
	clock    utils.Clock
	logger   types.Logger
}

// New creates a Fetcher. A zero Policy means DefaultPolicy.
func New(provider scraper.Provider, quota Reserver, updater CompanyUpdater, opts Options) *Fetcher {
	if opts.Policy.Sleep == nil {
		p := opts.Policy
		if p.NetworkRetries == 0 && p.NetworkDelay == 0 && p.RateLimitRetries == 0 && p.RateLimitDelay == 0 {
			opts.Policy = DefaultPolicy()
		} else {
			opts.Policy.Sleep = utils.SleepContext
		}
	}
	if len(opts.CareerPaths) == 0 {
		opts.CareerPaths = DefaultCareerPaths
	}
	if opts.Clock == nil {
		opts.Clock = utils.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetGlobalLogger()
	}

	return &Fetcher{
		provider: provider,
		quota:    quota,
		updater:  updater,
		policy:   opts.Policy,
		paths:    opts.CareerPaths,
		clock:    opts.Clock,
		logger:   opts.Logger.WithField("component", "fetcher"),
	}
}

// Candidates returns the ordered, de-duplicated URLs to try for a company
func (f *Fetcher) Candidates(c *models.Company) []string {
	var (
		out  []string
		seen = make(map[string]bool)
	)
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" {
			return
		}
		key := candidateKey(u)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, u)
	}

	add(c.CareerPageURL)
	if base := strings.TrimRight(strings.TrimSpace(c.URL), "/"); base != "" {
		for _, p := range f.paths {
			add(base + "/" + strings.TrimLeft(p, "/"))
		}
	}
	return out
}

// candidateKey folds scheme and host case and the trailing slash
func candidateKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimRight(u.Path, "/")
	u.Fragment = ""
	return u.String()
}

type attemptKind int

const (
	attemptContent attemptKind = iota
	attemptNotFound
	attemptNetwork
	attemptRateLimited
	attemptQuotaDenied
	attemptCircuitOpen
	attemptRejected
)

type attemptResult struct {
	kind   attemptKind
	body   string
	detail string
}

// FetchCareerPage walks the candidates until one returns content.
//
// A quota denial or a provider rate limit that survives its retry stops the walk
// with rate_limited, and a provider that rejects the credentials stops it with
// provider_rejected. Not-found and network failures that survive their retry move
// on to the next candidate; exhausting the list yields not_found. Candidates whose
// host is behind an open circuit breaker are skipped without spending quota, and
// a walk that skipped every candidate that way reports network_error. The
// company's last-scraped time is updated whenever at least one provider call was
// made.
func (f *Fetcher) FetchCareerPage(ctx context.Context, c *models.Company) models.FetchResult {
	logger := f.logger.WithFields(map[string]interface{}{
		"company": c.Identifier(),
	})

	result := f.walk(ctx, c, logger)

	if result.Attempts > 0 && c.ID != 0 {
		now := f.clock.Now()
		if err := f.updater.TouchLastScraped(ctx, c.ID, now); err != nil {
			logger.Warn("Failed to update last scraped time", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			c.LastScrapedAt = &now
		}
	}

	logger.Info("Career page fetch finished", map[string]interface{}{
		"status":       string(result.Status),
		"resolved_url": result.ResolvedURL,
		"attempts":     result.Attempts,
	})
	return result
}

func (f *Fetcher) walk(ctx context.Context, c *models.Company, logger types.Logger) models.FetchResult {
	candidates := f.Candidates(c)
	result := models.FetchResult{Status: models.FetchStatusNotFound}
	if len(candidates) == 0 {
		result.Detail = "no candidate urls"
		return result
	}

	var (
		failures []string
		skipped  int
	)
	for _, candidate := range candidates {
		attempt := f.tryCandidate(ctx, candidate, &result.Attempts, logger)

		switch attempt.kind {
		case attemptContent:
			result.Status = models.FetchStatusOK
			result.Content = attempt.body
			result.ResolvedURL = candidate
			f.recordCareerPage(ctx, c, candidate, logger)
			return result

		case attemptQuotaDenied:
			result.Status = models.FetchStatusRateLimited
			result.QuotaDenied = true
			result.Detail = attempt.detail
			return result

		case attemptRateLimited:
			result.Status = models.FetchStatusRateLimited
			result.Detail = fmt.Sprintf("%s: %s", candidate, attempt.detail)
			return result

		case attemptRejected:
			result.Status = models.FetchStatusRejected
			result.Detail = fmt.Sprintf("%s: %s", candidate, attempt.detail)
			return result

		case attemptCircuitOpen:
			skipped++
			failures = append(failures, fmt.Sprintf("%s: %s", candidate, attempt.detail))

		default:
			failures = append(failures, fmt.Sprintf("%s: %s", candidate, attempt.detail))
		}

		if ctx.Err() != nil {
			result.Status = models.FetchStatusNetworkError
			result.Detail = ctx.Err().Error()
			return result
		}
	}

	if skipped == len(candidates) {
		result.Status = models.FetchStatusNetworkError
	}
	result.Detail = strings.Join(failures, "; ")
	return result
}

// tryCandidate fetches one URL, retrying per policy. Every provider call is
// preceded by a quota reservation, which is skipped when the provider would
// refuse the URL without sending it.
func (f *Fetcher) tryCandidate(ctx context.Context, candidate string, attempts *int, logger types.Logger) attemptResult {
	networkLeft := f.policy.NetworkRetries
	rateLimitLeft := f.policy.RateLimitRetries
	gate, _ := f.provider.(admitter)

	for {
		if gate != nil && !gate.Admits(candidate) {
			logger.Info("Skipping candidate behind open circuit", map[string]interface{}{
				"url": candidate,
			})
			return attemptResult{kind: attemptCircuitOpen, detail: scraper.ErrCircuitOpen.Error()}
		}

		granted, err := f.quota.Reserve(ctx, 1)
		if err != nil {
			logger.Error("Quota reservation failed", map[string]interface{}{
				"url":   candidate,
				"error": err.Error(),
			})
			return attemptResult{kind: attemptQuotaDenied, detail: "quota unavailable: " + err.Error()}
		}
		if !granted {
			return attemptResult{kind: attemptQuotaDenied, detail: "scrape quota exhausted"}
		}

		*attempts++
		resp, err := f.provider.Fetch(ctx, candidate)
		res := classify(resp, err)

		logger.Debug("Fetch attempt", map[string]interface{}{
			"url":     candidate,
			"attempt": *attempts,
			"outcome": res.detail,
		})

		var delay time.Duration
		switch res.kind {
		case attemptNetwork:
			if networkLeft == 0 {
				return res
			}
			networkLeft--
			delay = f.policy.NetworkDelay
		case attemptRateLimited:
			if rateLimitLeft == 0 {
				return res
			}
			rateLimitLeft--
			delay = f.policy.RateLimitDelay
		default:
			return res
		}

		logger.Info("Retrying candidate", map[string]interface{}{
			"url":    candidate,
			"reason": res.detail,
			"delay":  delay.String(),
		})
		if err := f.policy.Sleep(ctx, delay); err != nil {
			return attemptResult{kind: attemptNetwork, detail: err.Error()}
		}
	}
}

// classify maps a provider response onto the fetch outcomes
func classify(resp *scraper.Response, err error) attemptResult {
	if err != nil {
		if errors.Is(err, scraper.ErrCircuitOpen) {
			return attemptResult{kind: attemptCircuitOpen, detail: err.Error()}
		}
		if errors.Is(err, scraper.ErrUnauthorized) {
			return attemptResult{kind: attemptRejected, detail: err.Error()}
		}
		if errors.Is(err, scraper.ErrRateLimited) {
			return attemptResult{kind: attemptRateLimited, detail: err.Error()}
		}
		return attemptResult{kind: attemptNetwork, detail: err.Error()}
	}
	if resp == nil {
		return attemptResult{kind: attemptNetwork, detail: "empty provider response"}
	}

	switch code := resp.StatusCode; {
	case code == http.StatusTooManyRequests:
		return attemptResult{kind: attemptRateLimited, detail: "status 429"}
	case code >= 500:
		return attemptResult{kind: attemptNetwork, detail: fmt.Sprintf("status %d", code)}
	case code >= 200 && code < 300:
		if strings.TrimSpace(resp.Body) == "" {
			return attemptResult{kind: attemptNotFound, detail: "empty body"}
		}
		return attemptResult{kind: attemptContent, body: resp.Body, detail: fmt.Sprintf("status %d", code)}
	default:
		return attemptResult{kind: attemptNotFound, detail: fmt.Sprintf("status %d", code)}
	}
}

func (f *Fetcher) recordCareerPage(ctx context.Context, c *models.Company, resolved string, logger types.Logger) {
	if c.ID == 0 || candidateKey(resolved) == candidateKey(c.CareerPageURL) {
		return
	}
	if err := f.updater.UpdateCareerPage(ctx, c.ID, resolved); err != nil {
		logger.Warn("Failed to store career page", map[string]interface{}{
			"url":   resolved,
			"error": err.Error(),
		})
		return
	}
	c.CareerPageURL = resolved
}
