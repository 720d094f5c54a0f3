// Package exporter writes stored jobs and companies as spreadsheet-ready CSV.
package exporter

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"jobscout/internal/logging"
	"jobscout/pkg/models"
	"jobscout/pkg/utils"
)

// Sentinel errors to allow precise mapping by callers
var (
	ErrNothingToExport = errors.New("nothing to export")
	ErrWrite           = errors.New("export_write_failed")
)

const (
	dateLayout        = "2006-01-02 15:04:05"
	maxDescriptionLen = 200
)

var jobColumns = []string{
	"ID", "Score", "Title", "Company", "Industry", "Location", "Role Type", "Status",
	"URL", "Recommendation", "Reasoning", "Discovered Date", "Applied Date", "Notes",
}

var companyColumns = []string{
	"Company Name", "Description", "Industry", "Location", "Website",
	"Careers Page", "Funding Stage", "Type", "Last Checked",
}

// Source reads what gets exported; store.Repository implements it
type Source interface {
	ListJobs(ctx context.Context, filter models.JobFilter) ([]models.Job, error)
	ListCompanies(ctx context.Context) ([]models.Company, error)
}

// WriteJobs writes one row per job. Company columns come from companies,
// matched by id.
func WriteJobs(w io.Writer, jobs []models.Job, companies []models.Company) error {
	byID := make(map[int64]models.Company, len(companies))
	for _, c := range companies {
		byID[c.ID] = c
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(jobColumns); err != nil {
		return err
	}
	for _, j := range jobs {
		company := byID[j.CompanyID]
		name := j.CompanyName
		if name == "" {
			name = company.Name
		}
		row := []string{
			strconv.FormatInt(j.ID, 10),
			strconv.Itoa(j.Score),
			j.Title,
			name,
			company.Industry,
			j.Location,
			strings.ToUpper(string(j.RoleType)),
			string(j.Status),
			j.URL,
			strings.ToUpper(string(j.Recommendation)),
			j.Reasoning,
			formatTime(&j.DiscoveredAt),
			formatTime(j.AppliedAt),
			j.Notes,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCompanies writes one row per company
func WriteCompanies(w io.Writer, companies []models.Company) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(companyColumns); err != nil {
		return err
	}
	for _, c := range companies {
		checked := c.LastScrapedAt
		if checked == nil {
			checked = &c.DiscoveredAt
		}
		row := []string{
			c.Name,
			utils.Truncate(c.Notes, maxDescriptionLen),
			c.Industry,
			c.Location,
			c.URL,
			c.CareerPageURL,
			c.FundingStage,
			string(c.Type),
			formatTime(checked),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportJobs writes jobs matching filter to path and returns the row count
func ExportJobs(ctx context.Context, src Source, filter models.JobFilter, path string) (int, error) {
	jobs, err := src.ListJobs(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("list jobs: %w", err)
	}
	if len(jobs) == 0 {
		return 0, ErrNothingToExport
	}
	companies, err := src.ListCompanies(ctx)
	if err != nil {
		return 0, fmt.Errorf("list companies: %w", err)
	}

	err = writeFile(path, func(w io.Writer) error { return WriteJobs(w, jobs, companies) })
	if err != nil {
		return 0, err
	}

	logging.GetGlobalLogger().Info("Jobs exported", map[string]interface{}{
		"path": path,
		"rows": len(jobs),
	})
	return len(jobs), nil
}

// ExportCompanies writes every stored company to path and returns the row count
func ExportCompanies(ctx context.Context, src Source, path string) (int, error) {
	companies, err := src.ListCompanies(ctx)
	if err != nil {
		return 0, fmt.Errorf("list companies: %w", err)
	}
	if len(companies) == 0 {
		return 0, ErrNothingToExport
	}

	if err := writeFile(path, func(w io.Writer) error { return WriteCompanies(w, companies) }); err != nil {
		return 0, err
	}

	logging.GetGlobalLogger().Info("Companies exported", map[string]interface{}{
		"path": path,
		"rows": len(companies),
	})
	return len(companies), nil
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := write(f); err != nil {
		f.Close()
		logging.GetGlobalLogger().Error("Failed to write export", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
