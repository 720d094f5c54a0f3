// Package store defines the persistence contract shared by the SQLite and
// PostgreSQL repositories.
package store

import (
	"context"
	"errors"
	"time"

	"jobscout/pkg/models"
)

var (
	// ErrLocked reports transient lock contention; callers may retry
	ErrLocked = errors.New("store: database locked")
	// ErrNotFound reports a missing row
	ErrNotFound = errors.New("store: not found")
)

// CompanyRepository persists companies keyed by normalized name
type CompanyRepository interface {
	// EnsureCompany returns the company stored under key, creating it from c when
	// absent. The boolean reports whether a row was created.
	EnsureCompany(ctx context.Context, key string, c *models.Company) (*models.Company, bool, error)
	GetCompany(ctx context.Context, id int64) (*models.Company, error)
	ListCompanies(ctx context.Context) ([]models.Company, error)
	UpdateCareerPage(ctx context.Context, id int64, url string) error
	TouchLastScraped(ctx context.Context, id int64, at time.Time) error
}

// JobRepository persists jobs keyed by posting URL
type JobRepository interface {
	JobExists(ctx context.Context, url string) (bool, error)
	// UpsertJob inserts the job with status new, or refreshes discovery metadata
	// of the existing row while leaving its status alone. job.ID and job.Status
	// are set from the stored row.
	UpsertJob(ctx context.Context, job *models.Job, now time.Time) (models.Outcome, error)
	TouchJob(ctx context.Context, url string, at time.Time) error
	GetJob(ctx context.Context, id int64) (*models.Job, error)
	ListJobs(ctx context.Context, filter models.JobFilter) ([]models.Job, error)
	UpdateJobStatus(ctx context.Context, id int64, status models.JobStatus, notes *string, at time.Time) (*models.Job, error)
}

// QuotaRepository keeps the single scrape-quota row
type QuotaRepository interface {
	ReserveQuota(ctx context.Context, period string, count, ceiling int) (bool, int, error)
	QuotaUsage(ctx context.Context, period string) (int, error)
}

// HistoryRepository records finished pipeline runs
type HistoryRepository interface {
	RecordRun(ctx context.Context, run *RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// Repository is the full storage surface used by the application
type Repository interface {
	CompanyRepository
	JobRepository
	QuotaRepository
	HistoryRepository

	// Stats fills every field except the quota ones
	Stats(ctx context.Context) (*models.Stats, error)
	Ping(ctx context.Context) error
	Close() error
}

// RunRecord is one row of search history
type RunRecord struct {
	ID         string    `json:"id"`
	Trigger    string    `json:"trigger"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Companies  int       `json:"companies"`
	Listings   int       `json:"listings"`
	Inserted   int       `json:"inserted"`
	Updated    int       `json:"updated"`
	Spooled    int       `json:"spooled"`
	Failures   int       `json:"failures"`
	Cancelled  bool      `json:"cancelled"`
}
