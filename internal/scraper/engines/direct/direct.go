// Package direct fetches career pages with a plain HTTP client. It suits
// server-rendered boards and local development without a Firecrawl key.
package direct

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"jobscout/internal/config"
	"jobscout/internal/logging"
	"jobscout/internal/logging/types"
	"jobscout/internal/scraper"
)

// maxBodyBytes bounds how much of a page is read into memory
const maxBodyBytes = 5 << 20

// Provider implements scraper.Provider over net/http
type Provider struct {
	client    *http.Client
	userAgent string
	logger    types.Logger
}

// NewProvider creates a direct provider
func NewProvider(cfg *config.Config) *Provider {
	timeout := cfg.Scraper.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewProviderWithClient(&http.Client{Timeout: timeout}, cfg.Scraper.UserAgent)
}

// NewProviderWithClient lets callers supply their own client
func NewProviderWithClient(client *http.Client, userAgent string) *Provider {
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (compatible; jobscout/1.0)"
	}
	return &Provider{
		client:    client,
		userAgent: userAgent,
		logger:    logging.GetGlobalLogger().WithField("engine", "direct"),
	}
}

func (p *Provider) Name() string { return "direct" }

func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

func (p *Provider) Fetch(ctx context.Context, url string) (*scraper.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		// an unparseable candidate can never be fetched
		return &scraper.Response{URL: url, StatusCode: http.StatusBadRequest}, nil
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/markdown;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scraper.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: %s returned %d", scraper.ErrRateLimited, url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: reading %s: %v", scraper.ErrNetwork, url, err)
	}

	contentType := scraper.ContentHTML
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "markdown") || strings.HasPrefix(ct, "text/plain") {
		contentType = scraper.ContentMarkdown
	}

	p.logger.Debug("Fetched page", map[string]interface{}{
		"url":    url,
		"status": resp.StatusCode,
		"bytes":  len(body),
	})

	return &scraper.Response{
		URL:         url,
		StatusCode:  resp.StatusCode,
		Body:        string(body),
		ContentType: contentType,
	}, nil
}
