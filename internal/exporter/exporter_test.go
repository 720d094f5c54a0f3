package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscout/pkg/models"
)

type staticSource struct {
	jobs      []models.Job
	companies []models.Company
}

func (s staticSource) ListJobs(context.Context, models.JobFilter) ([]models.Job, error) {
	return s.jobs, nil
}

func (s staticSource) ListCompanies(context.Context) ([]models.Company, error) {
	return s.companies, nil
}

var discovered = time.Date(2025, 2, 3, 9, 30, 0, 0, time.UTC)

func fixture() staticSource {
	return staticSource{
		companies: []models.Company{
			{ID: 1, Name: "Acme Robotics", URL: "https://acme.io", Industry: "Robotics", Type: models.CompanyTypeCompany, DiscoveredAt: discovered},
		},
		jobs: []models.Job{{
			ID:             7,
			CompanyID:      1,
			Title:          "Product Manager, Hardware",
			URL:            "https://acme.io/jobs/7",
			Location:       "London",
			Score:          84,
			RoleType:       models.RoleTypePM,
			Recommendation: models.RecommendationApply,
			Reasoning:      "strong hardware, robotics match",
			Status:         models.JobStatusNew,
			DiscoveredAt:   discovered,
		}},
	}
}

func TestWriteJobs(t *testing.T) {
	src := fixture()
	var buf bytes.Buffer
	require.NoError(t, WriteJobs(&buf, src.jobs, src.companies))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, jobColumns, rows[0])

	row := rows[1]
	assert.Equal(t, "7", row[0])
	assert.Equal(t, "Acme Robotics", row[3])
	assert.Equal(t, "Robotics", row[4])
	assert.Equal(t, "PM", row[6])
	assert.Equal(t, "strong hardware, robotics match", row[10], "commas are quoted, not split")
	assert.Equal(t, "2025-02-03 09:30:00", row[11])
	assert.Empty(t, row[12])
}

func TestExportCompanies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "companies.csv")
	n, err := ExportCompanies(context.Background(), fixture(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, companyColumns, rows[0])
	assert.Equal(t, "Acme Robotics", rows[1][0])
	assert.Equal(t, "2025-02-03 09:30:00", rows[1][8])
}

func TestExportJobsEmpty(t *testing.T) {
	_, err := ExportJobs(context.Background(), staticSource{}, models.JobFilter{}, filepath.Join(t.TempDir(), "jobs.csv"))
	assert.ErrorIs(t, err, ErrNothingToExport)
}
