// Package discovery supplies the companies whose career pages are scraped.
package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"jobscout/internal/config"
	"jobscout/internal/dedup"
	"jobscout/internal/logging"
	"jobscout/internal/logging/types"
	"jobscout/pkg/models"
	"jobscout/pkg/utils"
)

// Source lists candidate companies. Every returned company has at least a name and a base URL.
type Source interface {
	Name() string
	ListCandidateCompanies(ctx context.Context, criteria models.Criteria) ([]models.Company, error)
}

const sourceConfig = "config"

// ConfiguredSource returns the companies listed in the configuration file
type ConfiguredSource struct {
	Entries []config.CompanyEntry
}

// Name implements Source
func (ConfiguredSource) Name() string { return sourceConfig }

// ListCandidateCompanies implements Source
func (s ConfiguredSource) ListCandidateCompanies(_ context.Context, _ models.Criteria) ([]models.Company, error) {
	out := make([]models.Company, 0, len(s.Entries))
	for _, e := range s.Entries {
		companyType := models.CompanyType(e.Type)
		if companyType == "" {
			companyType = models.CompanyTypeCompany
		}
		out = append(out, models.Company{
			Name:          strings.TrimSpace(e.Name),
			URL:           strings.TrimSpace(e.URL),
			CareerPageURL: strings.TrimSpace(e.CareerPageURL),
			Type:          companyType,
			Industry:      e.Industry,
			Location:      e.Location,
			FundingStage:  e.FundingStage,
			Source:        sourceConfig,
		})
	}
	return out, nil
}

// MultiSource merges several sources. The first source to name a company wins;
// later entries with the same normalized name are dropped.
type MultiSource struct {
	sources  []Source
	validate *validator.Validate
	logger   types.Logger
}

// NewMultiSource combines sources in priority order
func NewMultiSource(logger types.Logger, sources ...Source) *MultiSource {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &MultiSource{
		sources:  sources,
		validate: validator.New(),
		logger:   logger.WithField("component", "discovery"),
	}
}

// Name implements Source
func (m *MultiSource) Name() string {
	names := make([]string, 0, len(m.sources))
	for _, s := range m.sources {
		names = append(names, s.Name())
	}
	return strings.Join(names, "+")
}

// ListCandidateCompanies implements Source. A failing source is logged and
// skipped; only an empty overall result is an error.
func (m *MultiSource) ListCandidateCompanies(ctx context.Context, criteria models.Criteria) ([]models.Company, error) {
	if len(m.sources) == 0 {
		return nil, utils.NewConfigurationError("no discovery source configured")
	}

	listed := make([][]models.Company, len(m.sources))
	failed := make([]error, len(m.sources))

	// Sources are queried together and merged in priority order
	var g errgroup.Group
	for i, src := range m.sources {
		g.Go(func() error {
			listed[i], failed[i] = src.ListCandidateCompanies(ctx, criteria)
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]bool)
	var out []models.Company

	for i, src := range m.sources {
		companies, err := listed[i], failed[i]
		if err != nil {
			m.logger.Error("Discovery source failed", map[string]interface{}{
				"source": src.Name(),
				"error":  err.Error(),
			})
			continue
		}

		added := 0
		for _, c := range companies {
			if err := m.validate.Struct(c); err != nil {
				m.logger.Warn("Dropping invalid discovered company", map[string]interface{}{
					"source":  src.Name(),
					"company": c.Identifier(),
					"error":   err.Error(),
				})
				continue
			}
			key := dedup.NormalizeCompanyName(c.Name)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, c)
			added++
		}

		m.logger.Info("Discovery source listed companies", map[string]interface{}{
			"source": src.Name(),
			"listed": len(companies),
			"added":  added,
		})
	}

	if len(out) == 0 {
		return nil, utils.NewConfigurationError(fmt.Sprintf("discovery sources %q returned no companies", m.Name()))
	}
	return out, nil
}

// NewFromConfig builds the configured sources. Configured companies come first
// so their career page URLs take precedence over curated ones.
func NewFromConfig(cfg *config.Config, logger types.Logger) (Source, error) {
	var sources []Source
	if len(cfg.Discovery.Companies) > 0 {
		sources = append(sources, ConfiguredSource{Entries: cfg.Discovery.Companies})
	}
	if cfg.Discovery.UseCurated {
		sources = append(sources, CuratedSource{IncludeVCFirms: cfg.Discovery.IncludeVCFirms})
	}
	if len(sources) == 0 {
		return nil, utils.NewConfigurationError("no discovery source configured: enable discovery.use_curated or list discovery.companies")
	}
	return NewMultiSource(logger, sources...), nil
}
