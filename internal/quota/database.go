package quota

import (
	"context"

	"jobscout/internal/store"
)

// DatabaseCounter keeps usage in the repository's scrape_quota row
type DatabaseCounter struct {
	repo store.QuotaRepository
}

func NewDatabaseCounter(repo store.QuotaRepository) *DatabaseCounter {
	return &DatabaseCounter{repo: repo}
}

func (c *DatabaseCounter) Reserve(ctx context.Context, period string, count, ceiling int) (bool, int, error) {
	return c.repo.ReserveQuota(ctx, period, count, ceiling)
}

func (c *DatabaseCounter) Usage(ctx context.Context, period string) (int, error) {
	return c.repo.QuotaUsage(ctx, period)
}
