// Package engines builds the configured Fetch Provider.
package engines

import (
	"fmt"

	"jobscout/internal/config"
	"jobscout/internal/logging"
	"jobscout/internal/scraper"
	"jobscout/internal/scraper/engines/direct"
	"jobscout/internal/scraper/engines/firecrawl"
	"jobscout/internal/scraper/engines/headed"
	"jobscout/internal/scraper/engines/hybrid"
	"jobscout/internal/scraper/workers"
)

// SupportedEngines lists the values accepted by scraper.engine
var SupportedEngines = []string{"firecrawl", "headed", "direct", "hybrid"}

// NewProvider creates the provider for cfg.Scraper.Engine wrapped in the per-domain limiter
func NewProvider(cfg *config.Config) (scraper.Provider, error) {
	var (
		provider scraper.Provider
		err      error
	)

	switch cfg.Scraper.Engine {
	case "firecrawl":
		provider, err = firecrawl.NewProvider(cfg)
	case "headed":
		provider = headed.NewProvider(cfg)
	case "direct", "":
		provider = direct.NewProvider(cfg)
	case "hybrid":
		var fallback *firecrawl.Provider
		fallback, err = firecrawl.NewProvider(cfg)
		if err == nil {
			blocked := hybrid.NewBlockedDomains(cfg.Scraper.BlockedDomainsPath, logging.GetGlobalLogger())
			provider = hybrid.NewProvider(direct.NewProvider(cfg), fallback, blocked)
		}
	default:
		return nil, fmt.Errorf("unsupported scraping engine: %s", cfg.Scraper.Engine)
	}
	if err != nil {
		return nil, err
	}

	return workers.NewLimitedProvider(provider, cfg), nil
}
