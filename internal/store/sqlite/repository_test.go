package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscout/internal/store"
	"jobscout/pkg/models"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(context.Background(), Options{Path: filepath.Join(t.TempDir(), "jobs.db")})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedCompany(t *testing.T, repo *Repository) *models.Company {
	t.Helper()
	c, created, err := repo.EnsureCompany(context.Background(), "wayve", &models.Company{
		Name:     "Wayve",
		URL:      "https://wayve.ai",
		Industry: "autonomous",
		Source:   "curated",
	})
	require.NoError(t, err)
	require.True(t, created)
	return c
}

func TestEnsureCompanyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	first := seedCompany(t, repo)

	again, created, err := repo.EnsureCompany(ctx, "wayve", &models.Company{Name: "WAYVE ", URL: "https://other.example"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "https://wayve.ai", again.URL)
	assert.Equal(t, models.CompanyTypeCompany, again.Type)

	companies, err := repo.ListCompanies(ctx)
	require.NoError(t, err)
	assert.Len(t, companies, 1)
}

func TestCareerPageAndLastScraped(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	c := seedCompany(t, repo)

	require.NoError(t, repo.UpdateCareerPage(ctx, c.ID, "https://wayve.ai/careers"))
	require.NoError(t, repo.UpdateCareerPage(ctx, c.ID, ""))

	at := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, repo.TouchLastScraped(ctx, c.ID, at))

	got, err := repo.GetCompany(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://wayve.ai/careers", got.CareerPageURL)
	require.NotNil(t, got.LastScrapedAt)
	assert.True(t, at.Equal(*got.LastScrapedAt))

	assert.ErrorIs(t, repo.TouchLastScraped(ctx, 999, at), store.ErrNotFound)
}

func TestUpsertJobPreservesStatus(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	c := seedCompany(t, repo)
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	job := &models.Job{
		CompanyID:      c.ID,
		Title:          "Senior Product Manager - Hardware",
		URL:            "https://wayve.ai/careers/spm-hardware",
		Location:       "London",
		Score:          90,
		RoleType:       models.RoleTypePM,
		Recommendation: models.RecommendationApply,
		Reasoning:      "strong match",
		Analysis:       &models.Analysis{Pros: []string{"hardware"}},
	}
	outcome, err := repo.UpsertJob(ctx, job, now)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeInserted, outcome)
	assert.Equal(t, models.JobStatusNew, job.Status)
	require.NotZero(t, job.ID)

	notes := "phone screen booked"
	updated, err := repo.UpdateJobStatus(ctx, job.ID, models.JobStatusApplied, &notes, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusApplied, updated.Status)
	require.NotNil(t, updated.AppliedAt)

	rediscovered := &models.Job{
		CompanyID:      c.ID,
		Title:          job.Title,
		URL:            job.URL,
		Score:          75,
		RoleType:       models.RoleTypePM,
		Recommendation: models.RecommendationConsider,
		Reasoning:      "rescored",
	}
	outcome, err = repo.UpsertJob(ctx, rediscovered, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeUpdated, outcome)
	assert.Equal(t, job.ID, rediscovered.ID)
	assert.Equal(t, models.JobStatusApplied, rediscovered.Status)

	stored, err := repo.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusApplied, stored.Status)
	assert.Equal(t, 75, stored.Score)
	assert.Equal(t, "rescored", stored.Reasoning)
	assert.Equal(t, "phone screen booked", stored.Notes)
	assert.Equal(t, "Wayve", stored.CompanyName)
	assert.True(t, now.Equal(stored.DiscoveredAt))
	assert.True(t, now.Add(24*time.Hour).Equal(stored.LastSeenAt))
}

func TestListJobsFilters(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	c := seedCompany(t, repo)
	now := time.Now().UTC()

	for i, score := range []int{72, 85, 95} {
		role := models.RoleTypePM
		if i == 0 {
			role = models.RoleTypeVC
		}
		_, err := repo.UpsertJob(ctx, &models.Job{
			CompanyID: c.ID,
			Title:     "Role",
			URL:       "https://wayve.ai/jobs/" + string(rune('a'+i)),
			Score:     score,
			RoleType:  role,
		}, now)
		require.NoError(t, err)
	}

	all, err := repo.ListJobs(ctx, models.JobFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 95, all[0].Score)

	high, err := repo.ListJobs(ctx, models.JobFilter{MinScore: 80, RoleType: models.RoleTypePM})
	require.NoError(t, err)
	assert.Len(t, high, 2)

	limited, err := repo.ListJobs(ctx, models.JobFilter{Limit: 1, Status: models.JobStatusNew})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	exists, err := repo.JobExists(ctx, "https://wayve.ai/jobs/a")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.JobExists(ctx, "https://wayve.ai/jobs/A")
	require.NoError(t, err)
	assert.False(t, exists, "url identity is case-sensitive")

	require.NoError(t, repo.TouchJob(ctx, "https://wayve.ai/jobs/a", now.Add(time.Hour)))
	assert.ErrorIs(t, repo.TouchJob(ctx, "https://wayve.ai/jobs/missing", now), store.ErrNotFound)
}

func TestQuotaRow(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	ok, used, err := repo.ReserveQuota(ctx, "2025-05", 2, 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, used)

	ok, used, err = repo.ReserveQuota(ctx, "2025-05", 2, 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, used)

	ok, used, err = repo.ReserveQuota(ctx, "2025-06", 1, 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, used)

	got, err := repo.QuotaUsage(ctx, "2025-05")
	require.NoError(t, err)
	assert.Equal(t, 0, got, "previous period has been replaced")
	got, err = repo.QuotaUsage(ctx, "2025-06")
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestStatsAndHistory(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	c := seedCompany(t, repo)
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, score := range []int{70, 90} {
		_, err := repo.UpsertJob(ctx, &models.Job{
			CompanyID: c.ID,
			Title:     "Role",
			URL:       "https://wayve.ai/jobs/" + string(rune('x'+i)),
			Score:     score,
			RoleType:  models.RoleTypePM,
		}, now)
		require.NoError(t, err)
	}

	require.NoError(t, repo.RecordRun(ctx, &store.RunRecord{
		ID:         "run_1",
		Trigger:    "cli",
		StartedAt:  now,
		FinishedAt: now.Add(time.Minute),
		Companies:  1,
		Inserted:   2,
	}))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalCompanies)
	assert.Equal(t, 2, stats.TotalJobs)
	assert.Equal(t, map[string]int{"new": 2}, stats.ByStatus)
	assert.Equal(t, map[string]int{"pm": 2}, stats.ByRoleType)
	assert.InDelta(t, 80.0, stats.AverageScore, 0.001)
	require.NotNil(t, stats.LastRunAt)
	assert.True(t, now.Add(time.Minute).Equal(*stats.LastRunAt))

	runs, err := repo.ListRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].Inserted)
	assert.False(t, runs[0].Cancelled)
}
