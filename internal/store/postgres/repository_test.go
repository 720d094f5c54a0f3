package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscout/internal/store"
	"jobscout/pkg/models"
	"jobscout/pkg/utils"
)

func TestMapError(t *testing.T) {
	locked := mapError(&pgconn.PgError{Code: pgerrcode.LockNotAvailable, Message: "could not obtain lock"})
	assert.ErrorIs(t, locked, store.ErrLocked)

	deadlock := mapError(fmt.Errorf("upsert: %w", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}))
	assert.ErrorIs(t, deadlock, store.ErrLocked)

	unique := &pgconn.PgError{Code: pgerrcode.UniqueViolation}
	assert.False(t, errors.Is(mapError(unique), store.ErrLocked))
	assert.Nil(t, mapError(nil))
}

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	url := os.Getenv("JOBSCOUT_TEST_DATABASE_URL")
	if url == "" || testing.Short() {
		t.Skip("JOBSCOUT_TEST_DATABASE_URL not set")
	}

	repo, err := Open(context.Background(), Options{URL: url, MaxConns: 2})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestUpsertJobPreservesStatus(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	suffix := utils.GenerateRunID()

	company, _, err := repo.EnsureCompany(ctx, "graphcore "+suffix, &models.Company{Name: "Graphcore", URL: "https://graphcore.ai"})
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Microsecond)
	job := &models.Job{
		CompanyID: company.ID,
		Title:     "Product Manager, Silicon",
		URL:       "https://graphcore.ai/jobs/" + suffix,
		Score:     88,
		RoleType:  models.RoleTypePM,
	}
	outcome, err := repo.UpsertJob(ctx, job, now)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeInserted, outcome)

	_, err = repo.UpdateJobStatus(ctx, job.ID, models.JobStatusInterested, nil, now)
	require.NoError(t, err)

	again := *job
	again.Score = 71
	outcome, err = repo.UpsertJob(ctx, &again, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeUpdated, outcome)
	assert.Equal(t, models.JobStatusInterested, again.Status)
}

func TestReserveQuota(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	period := "test-" + utils.GenerateRunID()

	ok, used, err := repo.ReserveQuota(ctx, period, 2, 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, used)

	ok, used, err = repo.ReserveQuota(ctx, period, 2, 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, used)
}
