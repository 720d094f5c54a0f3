// Package postgres implements the store contract on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobscout/internal/store"
	"jobscout/pkg/models"
)

// Options configures Open
type Options struct {
	URL      string
	MaxConns int32
}

// Repository implements store.Repository on PostgreSQL
type Repository struct {
	db *pgxpool.Pool
}

// Open connects, verifies the connection and applies the schema
func Open(ctx context.Context, opts Options) (*Repository, error) {
	config, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}

	config.MaxConns = 10
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Repository{db: pool}, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *Repository) Close() error {
	r.db.Close()
	return nil
}

// mapError translates pgx errors into store sentinels
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.LockNotAvailable, pgerrcode.DeadlockDetected, pgerrcode.SerializationFailure:
			return fmt.Errorf("%w: %s", store.ErrLocked, pgErr.Message)
		}
	}
	return err
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ---------------- COMPANIES ----------------

const companyColumns = `id, name, url, career_page_url, company_type, industry, location, funding_stage, source, notes, discovered_at, last_scraped_at`

func scanCompany(row pgx.Row) (*models.Company, error) {
	var (
		c                                                models.Company
		career, industry, location, stage, source, notes *string
		ctype                                            string
	)
	err := row.Scan(&c.ID, &c.Name, &c.URL, &career, &ctype, &industry, &location, &stage, &source, &notes,
		&c.DiscoveredAt, &c.LastScrapedAt)
	if err != nil {
		return nil, err
	}
	c.CareerPageURL = deref(career)
	c.Type = models.CompanyType(ctype)
	c.Industry = deref(industry)
	c.Location = deref(location)
	c.FundingStage = deref(stage)
	c.Source = deref(source)
	c.Notes = deref(notes)
	return &c, nil
}

func (r *Repository) companyWhere(ctx context.Context, where string, arg any) (*models.Company, error) {
	c, err := scanCompany(r.db.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE `+where, arg))
	if err != nil {
		return nil, mapError(err)
	}
	return c, nil
}

func (r *Repository) EnsureCompany(ctx context.Context, key string, c *models.Company) (*models.Company, bool, error) {
	discovered := c.DiscoveredAt
	if discovered.IsZero() {
		discovered = time.Now()
	}
	ctype := c.Type
	if ctype == "" {
		ctype = models.CompanyTypeCompany
	}

	query := `
		INSERT INTO companies (normalized_name, name, url, career_page_url, company_type, industry, location, funding_stage, source, notes, discovered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (normalized_name) DO NOTHING
		RETURNING ` + companyColumns

	created, err := scanCompany(r.db.QueryRow(ctx, query,
		key, c.Name, c.URL, nullString(c.CareerPageURL), string(ctype), nullString(c.Industry), nullString(c.Location),
		nullString(c.FundingStage), nullString(c.Source), nullString(c.Notes), discovered))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("insert company %q: %w", c.Name, mapError(err))
	}

	existing, err := r.companyWhere(ctx, "normalized_name = $1", key)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *Repository) GetCompany(ctx context.Context, id int64) (*models.Company, error) {
	return r.companyWhere(ctx, "id = $1", id)
}

func (r *Repository) ListCompanies(ctx context.Context) ([]models.Company, error) {
	rows, err := r.db.Query(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query companies: %w", mapError(err))
	}
	defer rows.Close()

	var companies []models.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		companies = append(companies, *c)
	}
	return companies, rows.Err()
}

func (r *Repository) UpdateCareerPage(ctx context.Context, id int64, url string) error {
	if url == "" {
		return nil
	}
	return r.execOne(ctx, `UPDATE companies SET career_page_url = $1 WHERE id = $2`, url, id)
}

func (r *Repository) TouchLastScraped(ctx context.Context, id int64, at time.Time) error {
	return r.execOne(ctx, `UPDATE companies SET last_scraped_at = $1 WHERE id = $2`, at, id)
}

func (r *Repository) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ---------------- JOBS ----------------

const jobSelect = `
	SELECT j.id, j.company_id, c.name, j.title, j.description, j.url, j.location, j.relevance_score,
	       j.role_type, j.recommendation, j.reasoning, j.ai_analysis, j.status,
	       j.discovered_at, j.last_seen_at, j.applied_at, j.notes
	FROM jobs j JOIN companies c ON c.id = j.company_id`

func scanJob(row pgx.Row) (*models.Job, error) {
	var (
		j                                     models.Job
		desc, location, rec, reasoning, notes *string
		roleType, status                      string
		analysis                              []byte
	)
	err := row.Scan(&j.ID, &j.CompanyID, &j.CompanyName, &j.Title, &desc, &j.URL, &location, &j.Score,
		&roleType, &rec, &reasoning, &analysis, &status, &j.DiscoveredAt, &j.LastSeenAt, &j.AppliedAt, &notes)
	if err != nil {
		return nil, err
	}

	j.Description = deref(desc)
	j.Location = deref(location)
	j.RoleType = models.RoleType(roleType)
	j.Recommendation = models.Recommendation(deref(rec))
	j.Reasoning = deref(reasoning)
	j.Status = models.JobStatus(status)
	j.Notes = deref(notes)

	a, err := store.DecodeAnalysis(analysis)
	if err != nil {
		return nil, err
	}
	j.Analysis = a
	return &j, nil
}

func (r *Repository) JobExists(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM jobs WHERE url = $1)`, url).Scan(&exists)
	if err != nil {
		return false, mapError(err)
	}
	return exists, nil
}

func (r *Repository) UpsertJob(ctx context.Context, job *models.Job, now time.Time) (models.Outcome, error) {
	analysis, err := store.EncodeAnalysis(job.Analysis)
	if err != nil {
		return "", err
	}

	query := `
		INSERT INTO jobs (company_id, title, description, url, location, relevance_score, role_type,
		                  recommendation, reasoning, ai_analysis, status, discovered_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		ON CONFLICT (url) DO UPDATE SET
			relevance_score = EXCLUDED.relevance_score,
			role_type       = EXCLUDED.role_type,
			recommendation  = EXCLUDED.recommendation,
			reasoning       = EXCLUDED.reasoning,
			ai_analysis     = EXCLUDED.ai_analysis,
			last_seen_at    = EXCLUDED.last_seen_at
		RETURNING id, status, discovered_at, (xmax = 0) AS inserted`

	var (
		status   string
		inserted bool
	)
	err = r.db.QueryRow(ctx, query,
		job.CompanyID, job.Title, nullString(job.Description), job.URL, nullString(job.Location), job.Score,
		string(job.RoleType), nullString(string(job.Recommendation)), nullString(job.Reasoning), analysis,
		string(models.JobStatusNew), now,
	).Scan(&job.ID, &status, &job.DiscoveredAt, &inserted)
	if err != nil {
		return "", mapError(err)
	}

	job.Status = models.JobStatus(status)
	job.LastSeenAt = now
	if inserted {
		return models.OutcomeInserted, nil
	}
	return models.OutcomeUpdated, nil
}

func (r *Repository) TouchJob(ctx context.Context, url string, at time.Time) error {
	return r.execOne(ctx, `UPDATE jobs SET last_seen_at = $1 WHERE url = $2`, at, url)
}

func (r *Repository) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	j, err := scanJob(r.db.QueryRow(ctx, jobSelect+` WHERE j.id = $1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return j, nil
}

func (r *Repository) ListJobs(ctx context.Context, filter models.JobFilter) ([]models.Job, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("j.status = $%d", string(filter.Status))
	}
	if filter.MinScore > 0 {
		add("j.relevance_score >= $%d", filter.MinScore)
	}
	if filter.RoleType != "" {
		add("j.role_type = $%d", string(filter.RoleType))
	}

	query := jobSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, store.ListLimit(filter))
	query += fmt.Sprintf(" ORDER BY j.relevance_score DESC, j.discovered_at DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", mapError(err))
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func (r *Repository) UpdateJobStatus(ctx context.Context, id int64, status models.JobStatus, notes *string, at time.Time) (*models.Job, error) {
	query := `
		UPDATE jobs SET
			status     = $1,
			notes      = COALESCE($2, notes),
			applied_at = CASE WHEN $1 = 'applied' THEN COALESCE(applied_at, $3) ELSE applied_at END
		WHERE id = $4`
	if err := r.execOne(ctx, query, string(status), notes, at, id); err != nil {
		return nil, err
	}
	return r.GetJob(ctx, id)
}

// ---------------- QUOTA ----------------

// ReserveQuota resets and increments in a single statement; no row is returned
// when the reservation would exceed the ceiling.
func (r *Repository) ReserveQuota(ctx context.Context, period string, count, ceiling int) (bool, int, error) {
	if count > ceiling {
		used, err := r.QuotaUsage(ctx, period)
		return false, used, err
	}

	query := `
		INSERT INTO scrape_quota (id, period, used) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
			period = EXCLUDED.period,
			used   = CASE WHEN scrape_quota.period = EXCLUDED.period THEN scrape_quota.used + $2 ELSE $2 END
		WHERE (CASE WHEN scrape_quota.period = EXCLUDED.period THEN scrape_quota.used ELSE 0 END) + $2 <= $3
		RETURNING used`

	var used int
	err := r.db.QueryRow(ctx, query, period, count, ceiling).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		used, err := r.QuotaUsage(ctx, period)
		return false, used, err
	}
	if err != nil {
		return false, 0, mapError(err)
	}
	return true, used, nil
}

func (r *Repository) QuotaUsage(ctx context.Context, period string) (int, error) {
	var used int
	err := r.db.QueryRow(ctx, `SELECT used FROM scrape_quota WHERE id = 1 AND period = $1`, period).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return used, mapError(err)
}

// ---------------- HISTORY & STATS ----------------

func (r *Repository) RecordRun(ctx context.Context, run *store.RunRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO search_history (id, trigger, started_at, finished_at, companies, listings, inserted, updated, spooled, failures, cancelled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		run.ID, run.Trigger, run.StartedAt, run.FinishedAt, run.Companies, run.Listings,
		run.Inserted, run.Updated, run.Spooled, run.Failures, run.Cancelled)
	return mapError(err)
}

func (r *Repository) ListRuns(ctx context.Context, limit int) ([]store.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, trigger, started_at, finished_at, companies, listings, inserted, updated, spooled, failures, cancelled
		FROM search_history ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var runs []store.RunRecord
	for rows.Next() {
		var run store.RunRecord
		if err := rows.Scan(&run.ID, &run.Trigger, &run.StartedAt, &run.FinishedAt, &run.Companies, &run.Listings,
			&run.Inserted, &run.Updated, &run.Spooled, &run.Failures, &run.Cancelled); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *Repository) Stats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{
		ByStatus:   map[string]int{},
		ByRoleType: map[string]int{},
	}

	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM companies`).Scan(&stats.TotalCompanies); err != nil {
		return nil, mapError(err)
	}
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*), COALESCE(AVG(relevance_score), 0)::float8 FROM jobs`).
		Scan(&stats.TotalJobs, &stats.AverageScore); err != nil {
		return nil, mapError(err)
	}
	for column, into := range map[string]map[string]int{"status": stats.ByStatus, "role_type": stats.ByRoleType} {
		if err := r.groupCount(ctx, column, into); err != nil {
			return nil, err
		}
	}
	if err := r.db.QueryRow(ctx, `SELECT MAX(finished_at) FROM search_history`).Scan(&stats.LastRunAt); err != nil {
		return nil, mapError(err)
	}
	return stats, nil
}

func (r *Repository) groupCount(ctx context.Context, column string, into map[string]int) error {
	rows, err := r.db.Query(ctx, `SELECT `+column+`, COUNT(*) FROM jobs GROUP BY `+column)
	if err != nil {
		return mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key] = n
	}
	return rows.Err()
}

var _ store.Repository = (*Repository)(nil)
