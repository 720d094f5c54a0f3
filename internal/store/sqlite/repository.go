// Package sqlite implements the store contract on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"jobscout/internal/store"
	"jobscout/pkg/models"
)

const timeLayout = time.RFC3339Nano

// Options configures Open
type Options struct {
	Path        string
	BusyTimeout time.Duration
}

// Repository implements store.Repository on SQLite
type Repository struct {
	db *sql.DB
}

// Open creates the database file if needed and applies the schema
func Open(ctx context.Context, opts Options) (*Repository, error) {
	if opts.Path == "" {
		return nil, errors.New("sqlite: database path is empty")
	}
	if opts.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)",
		opts.Path, busy.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one writer per process; contention only comes from other processes
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// mapError translates driver errors into store sentinels
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}

	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", store.ErrLocked, err)
		}
	}
	if strings.Contains(err.Error(), "database is locked") {
		return fmt.Errorf("%w: %v", store.ErrLocked, err)
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ---------------- COMPANIES ----------------

const companyColumns = `id, name, url, career_page_url, company_type, industry, location, funding_stage, source, notes, discovered_at, last_scraped_at`

func scanCompany(row scanner) (*models.Company, error) {
	var (
		c                                                    models.Company
		career, industry, location, stage, source, notes, ls sql.NullString
		ctype, discovered                                    string
	)
	err := row.Scan(&c.ID, &c.Name, &c.URL, &career, &ctype, &industry, &location, &stage, &source, &notes, &discovered, &ls)
	if err != nil {
		return nil, err
	}

	c.CareerPageURL = career.String
	c.Type = models.CompanyType(ctype)
	c.Industry = industry.String
	c.Location = location.String
	c.FundingStage = stage.String
	c.Source = source.String
	c.Notes = notes.String
	c.DiscoveredAt = parseTime(discovered)
	c.LastScrapedAt = parseNullTime(ls)
	return &c, nil
}

func (r *Repository) companyWhere(ctx context.Context, where string, arg any) (*models.Company, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE `+where, arg)
	c, err := scanCompany(row)
	if err != nil {
		return nil, mapError(err)
	}
	return c, nil
}

func (r *Repository) EnsureCompany(ctx context.Context, key string, c *models.Company) (*models.Company, bool, error) {
	existing, err := r.companyWhere(ctx, "normalized_name = ?", key)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	discovered := c.DiscoveredAt
	if discovered.IsZero() {
		discovered = time.Now()
	}
	ctype := c.Type
	if ctype == "" {
		ctype = models.CompanyTypeCompany
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO companies (normalized_name, name, url, career_page_url, company_type, industry, location, funding_stage, source, notes, discovered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (normalized_name) DO NOTHING`,
		key, c.Name, c.URL, nullString(c.CareerPageURL), string(ctype), nullString(c.Industry), nullString(c.Location),
		nullString(c.FundingStage), nullString(c.Source), nullString(c.Notes), formatTime(discovered))
	if err != nil {
		return nil, false, fmt.Errorf("insert company %q: %w", c.Name, mapError(err))
	}
	n, _ := res.RowsAffected()

	created, err := r.companyWhere(ctx, "normalized_name = ?", key)
	if err != nil {
		return nil, false, err
	}
	return created, n > 0, nil
}

func (r *Repository) GetCompany(ctx context.Context, id int64) (*models.Company, error) {
	return r.companyWhere(ctx, "id = ?", id)
}

func (r *Repository) ListCompanies(ctx context.Context) ([]models.Company, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY name`)
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
	return r.execOne(ctx, `UPDATE companies SET career_page_url = ? WHERE id = ?`, url, id)
}

func (r *Repository) TouchLastScraped(ctx context.Context, id int64, at time.Time) error {
	return r.execOne(ctx, `UPDATE companies SET last_scraped_at = ? WHERE id = ?`, formatTime(at), id)
}

func (r *Repository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
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

func scanJob(row scanner) (*models.Job, error) {
	var (
		j                                                    models.Job
		desc, location, rec, reasoning, analysis, notes, app sql.NullString
		roleType, status, discovered, lastSeen               string
	)
	err := row.Scan(&j.ID, &j.CompanyID, &j.CompanyName, &j.Title, &desc, &j.URL, &location, &j.Score,
		&roleType, &rec, &reasoning, &analysis, &status, &discovered, &lastSeen, &app, &notes)
	if err != nil {
		return nil, err
	}

	j.Description = desc.String
	j.Location = location.String
	j.RoleType = models.RoleType(roleType)
	j.Recommendation = models.Recommendation(rec.String)
	j.Reasoning = reasoning.String
	j.Status = models.JobStatus(status)
	j.DiscoveredAt = parseTime(discovered)
	j.LastSeenAt = parseTime(lastSeen)
	j.AppliedAt = parseNullTime(app)
	j.Notes = notes.String

	if analysis.Valid {
		a, err := store.DecodeAnalysis([]byte(analysis.String))
		if err != nil {
			return nil, err
		}
		j.Analysis = a
	}
	return &j, nil
}

func (r *Repository) JobExists(ctx context.Context, url string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM jobs WHERE url = ?`, url).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapError(err)
	}
	return true, nil
}

func (r *Repository) UpsertJob(ctx context.Context, job *models.Job, now time.Time) (models.Outcome, error) {
	encoded, err := store.EncodeAnalysis(job.Analysis)
	if err != nil {
		return "", err
	}
	var analysis any
	if encoded != nil {
		analysis = string(encoded)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", mapError(err)
	}
	defer tx.Rollback()

	var (
		id      int64
		status  string
		outcome models.Outcome
	)
	err = tx.QueryRowContext(ctx, `SELECT id, status FROM jobs WHERE url = ?`, job.URL).Scan(&id, &status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx, `
			INSERT INTO jobs (company_id, title, description, url, location, relevance_score, role_type,
			                  recommendation, reasoning, ai_analysis, status, discovered_at, last_seen_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			job.CompanyID, job.Title, nullString(job.Description), job.URL, nullString(job.Location), job.Score,
			string(job.RoleType), nullString(string(job.Recommendation)), nullString(job.Reasoning), analysis,
			string(models.JobStatusNew), formatTime(now), formatTime(now))
		if err != nil {
			return "", mapError(err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return "", err
		}
		status = string(models.JobStatusNew)
		outcome = models.OutcomeInserted
		job.DiscoveredAt = now

	case err != nil:
		return "", mapError(err)

	default:
		_, err := tx.ExecContext(ctx, `
			UPDATE jobs
			SET relevance_score = ?, role_type = ?, recommendation = ?, reasoning = ?, ai_analysis = ?, last_seen_at = ?
			WHERE id = ?`,
			job.Score, string(job.RoleType), nullString(string(job.Recommendation)), nullString(job.Reasoning),
			analysis, formatTime(now), id)
		if err != nil {
			return "", mapError(err)
		}
		outcome = models.OutcomeUpdated
	}

	if err := tx.Commit(); err != nil {
		return "", mapError(err)
	}

	job.ID = id
	job.Status = models.JobStatus(status)
	job.LastSeenAt = now
	return outcome, nil
}

func (r *Repository) TouchJob(ctx context.Context, url string, at time.Time) error {
	return r.execOne(ctx, `UPDATE jobs SET last_seen_at = ? WHERE url = ?`, formatTime(at), url)
}

func (r *Repository) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	j, err := scanJob(r.db.QueryRowContext(ctx, jobSelect+` WHERE j.id = ?`, id))
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
	if filter.Status != "" {
		where = append(where, "j.status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.MinScore > 0 {
		where = append(where, "j.relevance_score >= ?")
		args = append(args, filter.MinScore)
	}
	if filter.RoleType != "" {
		where = append(where, "j.role_type = ?")
		args = append(args, string(filter.RoleType))
	}

	query := jobSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY j.relevance_score DESC, j.discovered_at DESC LIMIT ?"
	args = append(args, store.ListLimit(filter))

	rows, err := r.db.QueryContext(ctx, query, args...)
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
	set := []string{"status = ?"}
	args := []any{string(status)}
	if notes != nil {
		set = append(set, "notes = ?")
		args = append(args, *notes)
	}
	if status == models.JobStatusApplied {
		set = append(set, "applied_at = COALESCE(applied_at, ?)")
		args = append(args, formatTime(at))
	}
	args = append(args, id)

	if err := r.execOne(ctx, `UPDATE jobs SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...); err != nil {
		return nil, err
	}
	return r.GetJob(ctx, id)
}

// ---------------- QUOTA ----------------

func (r *Repository) ReserveQuota(ctx context.Context, period string, count, ceiling int) (bool, int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, mapError(err)
	}
	defer tx.Rollback()

	var (
		stored string
		used   int
	)
	err = tx.QueryRowContext(ctx, `SELECT period, used FROM scrape_quota WHERE id = 1`).Scan(&stored, &used)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, 0, mapError(err)
	}
	if stored != period {
		used = 0
	}
	if used+count > ceiling {
		return false, used, nil
	}
	used += count

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scrape_quota (id, period, used) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET period = excluded.period, used = excluded.used`, period, used)
	if err != nil {
		return false, 0, mapError(err)
	}
	if err := tx.Commit(); err != nil {
		return false, 0, mapError(err)
	}
	return true, used, nil
}

func (r *Repository) QuotaUsage(ctx context.Context, period string) (int, error) {
	var (
		stored string
		used   int
	)
	err := r.db.QueryRowContext(ctx, `SELECT period, used FROM scrape_quota WHERE id = 1`).Scan(&stored, &used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, mapError(err)
	}
	if stored != period {
		return 0, nil
	}
	return used, nil
}

// ---------------- HISTORY & STATS ----------------

func (r *Repository) RecordRun(ctx context.Context, run *store.RunRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO search_history (id, trigger, started_at, finished_at, companies, listings, inserted, updated, spooled, failures, cancelled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Trigger, formatTime(run.StartedAt), formatTime(run.FinishedAt), run.Companies, run.Listings,
		run.Inserted, run.Updated, run.Spooled, run.Failures, run.Cancelled)
	return mapError(err)
}

func (r *Repository) ListRuns(ctx context.Context, limit int) ([]store.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, trigger, started_at, finished_at, companies, listings, inserted, updated, spooled, failures, cancelled
		FROM search_history ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var runs []store.RunRecord
	for rows.Next() {
		var (
			run             store.RunRecord
			started, finish string
		)
		if err := rows.Scan(&run.ID, &run.Trigger, &started, &finish, &run.Companies, &run.Listings,
			&run.Inserted, &run.Updated, &run.Spooled, &run.Failures, &run.Cancelled); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = parseTime(started)
		run.FinishedAt = parseTime(finish)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *Repository) Stats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{
		ByStatus:   map[string]int{},
		ByRoleType: map[string]int{},
	}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM companies`).Scan(&stats.TotalCompanies); err != nil {
		return nil, mapError(err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(AVG(relevance_score), 0) FROM jobs`).
		Scan(&stats.TotalJobs, &stats.AverageScore); err != nil {
		return nil, mapError(err)
	}
	if err := r.groupCount(ctx, "status", stats.ByStatus); err != nil {
		return nil, err
	}
	if err := r.groupCount(ctx, "role_type", stats.ByRoleType); err != nil {
		return nil, err
	}

	var last sql.NullString
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(finished_at) FROM search_history`).Scan(&last); err != nil {
		return nil, mapError(err)
	}
	stats.LastRunAt = parseNullTime(last)
	return stats, nil
}

func (r *Repository) groupCount(ctx context.Context, column string, into map[string]int) error {
	rows, err := r.db.QueryContext(ctx, `SELECT `+column+`, COUNT(*) FROM jobs GROUP BY `+column)
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
