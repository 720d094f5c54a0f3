package firecrawl

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mendableai/firecrawl-go"

	"jobscout/internal/config"
	"jobscout/internal/logging"
	"jobscout/internal/logging/types"
	"jobscout/internal/scraper"
)

// scrapeFunc matches FirecrawlApp.ScrapeURL so tests can substitute the API
type scrapeFunc func(url string, params *firecrawl.ScrapeParams) (*firecrawl.FirecrawlDocument, error)

// Provider implements scraper.Provider using the Firecrawl API
type Provider struct {
	config *config.Config
	scrape scrapeFunc
	logger types.Logger
}

// NewProvider creates a Firecrawl provider
func NewProvider(cfg *config.Config) (*Provider, error) {
	logger := logging.GetGlobalLogger()

	app, err := firecrawl.NewFirecrawlApp(cfg.Firecrawl.APIKey, cfg.Firecrawl.APIURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firecrawl: %w", err)
	}

	logger.Info("Firecrawl provider initialized", map[string]interface{}{
		"api_url": cfg.Firecrawl.APIURL,
		"formats": cfg.Firecrawl.Formats,
	})

	return &Provider{
		config: cfg,
		scrape: app.ScrapeURL,
		logger: logger.WithField("engine", "firecrawl"),
	}, nil
}

func (p *Provider) Name() string { return "firecrawl" }

func (p *Provider) Close() error { return nil }

// Fetch scrapes a single page. The SDK call is not context-aware, so it runs in a
// goroutine and the caller stops waiting when ctx ends.
func (p *Provider) Fetch(ctx context.Context, url string) (*scraper.Response, error) {
	timeout := p.config.Firecrawl.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	onlyMain := p.config.Firecrawl.OnlyMainContent
	params := &firecrawl.ScrapeParams{
		Formats:         p.config.Firecrawl.Formats,
		OnlyMainContent: &onlyMain,
	}

	type result struct {
		doc *firecrawl.FirecrawlDocument
		err error
	}
	done := make(chan result, 1)
	go func() {
		doc, err := p.scrape(url, params)
		done <- result{doc: doc, err: err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: firecrawl %s: %v", scraper.ErrNetwork, url, ctx.Err())
	case r = <-done:
	}

	if r.err != nil {
		p.logger.Debug("Firecrawl scrape failed", map[string]interface{}{
			"url":   url,
			"error": r.err.Error(),
		})
		return classifyError(url, r.err)
	}
	if r.doc == nil {
		return nil, fmt.Errorf("%w: no result returned from Firecrawl", scraper.ErrNetwork)
	}

	return toResponse(url, r.doc), nil
}

// toResponse prefers HTML so ATS layouts can be matched structurally
func toResponse(url string, doc *firecrawl.FirecrawlDocument) *scraper.Response {
	resp := &scraper.Response{URL: url, StatusCode: http.StatusOK}

	if doc.Metadata != nil && doc.Metadata.StatusCode != nil && *doc.Metadata.StatusCode != 0 {
		resp.StatusCode = *doc.Metadata.StatusCode
	}

	switch {
	case strings.TrimSpace(doc.HTML) != "":
		resp.Body = doc.HTML
		resp.ContentType = scraper.ContentHTML
	case strings.TrimSpace(doc.Markdown) != "":
		resp.Body = doc.Markdown
		resp.ContentType = scraper.ContentMarkdown
	}
	return resp
}

// classifyError maps SDK errors, which only carry the status in their message
func classifyError(url string, err error) (*scraper.Response, error) {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "status code 429"), strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many requests"):
		return nil, fmt.Errorf("%w: %v", scraper.ErrRateLimited, err)
	case strings.Contains(msg, "status code 404"), strings.Contains(msg, "not found"):
		return &scraper.Response{URL: url, StatusCode: http.StatusNotFound}, nil
	case strings.Contains(msg, "payment required"), strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "status code 401"), strings.Contains(msg, "status code 402"):
		return nil, fmt.Errorf("%w: %v", scraper.ErrUnauthorized, err)
	}
	return nil, fmt.Errorf("%w: %v", scraper.ErrNetwork, err)
}
