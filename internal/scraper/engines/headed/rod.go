package headed

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"jobscout/internal/config"
	"jobscout/internal/logging"
	"jobscout/internal/logging/types"
	"jobscout/internal/scraper"
)

// Provider renders career pages in a real browser for sites that build their
// listings client-side
type Provider struct {
	config         *config.Config
	browserManager *BrowserManager
	settle         time.Duration
	logger         types.Logger
}

// NewProvider creates a new Rod provider
func NewProvider(cfg *config.Config) *Provider {
	return &Provider{
		config:         cfg,
		browserManager: NewBrowserManager(cfg),
		settle:         2 * time.Second,
		logger:         logging.GetGlobalLogger().WithField("engine", "headed"),
	}
}

func (p *Provider) Name() string { return "headed" }

func (p *Provider) Fetch(ctx context.Context, url string) (*scraper.Response, error) {
	startTime := time.Now()

	browser, err := p.browserManager.GetBrowser(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get browser instance: %v", scraper.ErrNetwork, err)
	}
	defer browser.Release()

	timeout := p.config.Scraper.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	status, err := browser.Navigate(ctx, url, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scraper.ErrNetwork, err)
	}
	if status == 0 {
		status = http.StatusOK
	}

	// client-side boards keep rendering after the load event
	select {
	case <-time.After(p.settle):
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", scraper.ErrNetwork, ctx.Err())
	}

	html, err := browser.GetPageHTML()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scraper.ErrNetwork, err)
	}

	p.logger.Debug("Rendered page", map[string]interface{}{
		"url":             url,
		"status":          status,
		"processing_time": time.Since(startTime).String(),
	})

	return &scraper.Response{
		URL:         url,
		StatusCode:  status,
		Body:        html,
		ContentType: scraper.ContentHTML,
	}, nil
}

func (p *Provider) Close() error {
	p.browserManager.Cleanup()
	return nil
}
