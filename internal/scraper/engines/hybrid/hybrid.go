// Package hybrid fetches with a cheap primary engine and switches to a
// rendering fallback for hosts that answer with a bot challenge.
package hybrid

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"jobscout/internal/logging"
	"jobscout/internal/logging/types"
	"jobscout/internal/scraper"
)

// challengeMarkers appear in interstitial pages served instead of content
var challengeMarkers = []string{
	"captcha",
	"cf-chl",
	"challenge-platform",
	"just a moment...",
	"enable javascript and cookies",
	"attention required!",
	"px-captcha",
}

// Provider implements scraper.Provider over two engines
type Provider struct {
	primary  scraper.Provider
	fallback scraper.Provider
	blocked  *BlockedDomains
	logger   types.Logger
}

// NewProvider creates a hybrid provider. blocked may be nil.
func NewProvider(primary, fallback scraper.Provider, blocked *BlockedDomains) *Provider {
	logger := logging.GetGlobalLogger().WithField("engine", "hybrid")
	if blocked == nil {
		blocked = NewBlockedDomains("", logger)
	}

	logger.Info("Hybrid provider initialized", map[string]interface{}{
		"primary":         primary.Name(),
		"fallback":        fallback.Name(),
		"blocked_domains": blocked.Len(),
	})

	return &Provider{primary: primary, fallback: fallback, blocked: blocked, logger: logger}
}

func (p *Provider) Name() string {
	return fmt.Sprintf("hybrid(%s>%s)", p.primary.Name(), p.fallback.Name())
}

func (p *Provider) Close() error {
	err1 := p.primary.Close()
	err2 := p.fallback.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Fetch goes straight to the fallback for known blocked hosts. Otherwise it
// tries the primary and falls back only when the answer is a challenge page;
// primary errors are returned as-is. The fallback is called at most once per
// Fetch, and the primary is expected to be unmetered, so the single quota unit
// the fetcher reserves per attempt covers the one paid request.
func (p *Provider) Fetch(ctx context.Context, url string) (*scraper.Response, error) {
	if p.blocked.Contains(url) {
		p.logger.Debug("Host is known to block the primary engine", map[string]interface{}{"url": url})
		return p.fallback.Fetch(ctx, url)
	}

	resp, err := p.primary.Fetch(ctx, url)
	if err != nil || !IsChallenge(resp) {
		return resp, err
	}

	p.logger.Info("Challenge page detected, falling back", map[string]interface{}{
		"url":    url,
		"status": resp.StatusCode,
	})
	if addErr := p.blocked.Add(url); addErr != nil {
		p.logger.Warn("Failed to record blocked domain", map[string]interface{}{
			"url":   url,
			"error": addErr.Error(),
		})
	}
	return p.fallback.Fetch(ctx, url)
}

// IsChallenge reports whether a response is a bot challenge rather than the
// requested page
func IsChallenge(resp *scraper.Response) bool {
	if resp == nil {
		return false
	}
	switch resp.StatusCode {
	case http.StatusForbidden, http.StatusServiceUnavailable:
	default:
		if resp.StatusCode >= 300 || len(resp.Body) > 64<<10 {
			return false
		}
	}

	body := strings.ToLower(resp.Body)
	for _, marker := range challengeMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}
