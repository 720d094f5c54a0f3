// Package dedup collapses duplicate companies and postings before scoring.
package dedup

import (
	"context"
	"fmt"
	"sync"

	"jobscout/internal/logging"
	"jobscout/internal/logging/types"
	"jobscout/pkg/models"
)

// Repository is the storage the Deduplicator consults
type Repository interface {
	EnsureCompany(ctx context.Context, key string, c *models.Company) (*models.Company, bool, error)
	UpdateCareerPage(ctx context.Context, id int64, url string) error
	JobExists(ctx context.Context, url string) (bool, error)
}

// Deduplicator resolves company identity by normalized name and job identity
// by normalized posting URL. It remembers postings seen during the current run.
type Deduplicator struct {
	repo   Repository
	logger types.Logger

	mu   sync.Mutex
	seen map[string]bool
}

// New creates a Deduplicator
func New(repo Repository, logger types.Logger) *Deduplicator {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Deduplicator{
		repo:   repo,
		logger: logger.WithField("component", "dedup"),
		seen:   make(map[string]bool),
	}
}

// ResolveCompany returns the stored company equivalent to c, creating it when
// absent. The boolean reports whether a new row was created. A stored company
// without a career page picks up the one c carries.
func (d *Deduplicator) ResolveCompany(ctx context.Context, c models.Company) (*models.Company, bool, error) {
	key := NormalizeCompanyName(c.Name)
	if key == "" {
		return nil, false, fmt.Errorf("company %q has no usable name", c.URL)
	}

	stored, created, err := d.repo.EnsureCompany(ctx, key, &c)
	if err != nil {
		return nil, false, fmt.Errorf("resolve company %q: %w", c.Name, err)
	}

	if !created && stored.CareerPageURL == "" && c.CareerPageURL != "" {
		if err := d.repo.UpdateCareerPage(ctx, stored.ID, c.CareerPageURL); err != nil {
			d.logger.Warn("Failed to backfill career page", map[string]interface{}{
				"company": stored.Name,
				"error":   err.Error(),
			})
		} else {
			stored.CareerPageURL = c.CareerPageURL
		}
	}

	if created {
		d.logger.Info("New company recorded", map[string]interface{}{
			"company": stored.Name,
			"id":      stored.ID,
		})
	}
	return stored, created, nil
}

// IsKnownJob reports whether the posting at rawURL is stored or was already
// seen in this run. It expects rawURL to be normalized.
func (d *Deduplicator) IsKnownJob(ctx context.Context, rawURL string) (bool, error) {
	d.mu.Lock()
	seen := d.seen[rawURL]
	d.mu.Unlock()
	if seen {
		return true, nil
	}

	exists, err := d.repo.JobExists(ctx, rawURL)
	if err != nil {
		return false, fmt.Errorf("check job %q: %w", rawURL, err)
	}
	return exists, nil
}

// MarkSeen records that a posting was handled in this run
func (d *Deduplicator) MarkSeen(rawURL string) {
	d.mu.Lock()
	d.seen[rawURL] = true
	d.mu.Unlock()
}

// Reset forgets postings seen in the previous run
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	d.seen = make(map[string]bool)
	d.mu.Unlock()
}
