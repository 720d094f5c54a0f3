package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscout/internal/dedup"
	"jobscout/internal/discovery"
	"jobscout/internal/extractor"
	"jobscout/internal/logging"
	"jobscout/internal/persistence"
	"jobscout/internal/recovery"
	"jobscout/internal/scoring"
	"jobscout/internal/store"
	"jobscout/internal/store/sqlite"
	"jobscout/pkg/models"
	"jobscout/pkg/utils"
)

const acmePage = `<html><body>
<div class="opening">
  <a href="/jobs/101?gh_src=newsletter">Senior Product Manager - Hardware</a>
  <span class="location">London</span>
  <p>Own the roadmap for our edge inference chip and the hardware that ships it.</p>
</div>
<div class="opening">
  <a href="/jobs/102">Software Engineer</a>
  <span class="location">Berlin</span>
  <p>Build backend services in Go for our payments platform.</p>
</div>
<div class="opening">
  <a>Product Manager, Robotics</a>
</div>
</body></html>`

const globexPage = `<html><body>
<div class="opening">
  <a href="https://globex.io/jobs/7">Technical Product Manager, Robotics</a>
  <span class="location">Remote, UK</span>
  <p>Lead our autonomous robotics platform, working with FPGA and silicon teams.</p>
</div>
</body></html>`

type stubSource struct {
	companies []models.Company
	err       error
}

func (s stubSource) Name() string { return "stub" }

func (s stubSource) ListCandidateCompanies(context.Context, models.Criteria) ([]models.Company, error) {
	return s.companies, s.err
}

// pageFetcher serves fixed pages keyed by company name
type pageFetcher struct {
	pages   map[string]models.FetchResult
	calls   []string
	onFetch func(name string)
}

func (f *pageFetcher) FetchCareerPage(_ context.Context, c *models.Company) models.FetchResult {
	f.calls = append(f.calls, c.Name)
	if f.onFetch != nil {
		f.onFetch(c.Name)
	}
	res, ok := f.pages[c.Name]
	if !ok {
		return models.FetchResult{Status: models.FetchStatusNotFound, Attempts: 4, Detail: "no career page found"}
	}
	return res
}

type lockingWriter struct {
	next   persistence.JobWriter
	locked map[string]bool
}

func (w *lockingWriter) UpsertJob(ctx context.Context, job *models.Job, now time.Time) (models.Outcome, error) {
	if w.locked[job.URL] {
		return "", store.ErrLocked
	}
	return w.next.UpsertJob(ctx, job, now)
}

type recordingNotifier struct {
	digests []models.Digest
}

func (n *recordingNotifier) Notify(_ context.Context, d models.Digest) error {
	n.digests = append(n.digests, d)
	return nil
}

type harness struct {
	pipeline *Pipeline
	repo     *sqlite.Repository
	fetcher  *pageFetcher
	writer   *lockingWriter
	queue    *recovery.Queue
	notifier *recordingNotifier
}

func ok(url, body string) models.FetchResult {
	return models.FetchResult{Status: models.FetchStatusOK, Content: body, ResolvedURL: url, Attempts: 1}
}

func newHarness(t *testing.T, source discovery.Source) *harness {
	t.Helper()
	ctx := context.Background()
	logger := logging.NewNopLogger()

	repo, err := sqlite.Open(ctx, sqlite.Options{Path: filepath.Join(t.TempDir(), "jobs.db")})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	fetcher := &pageFetcher{pages: map[string]models.FetchResult{
		"Acme Robotics": ok("https://acme.io/careers", acmePage),
		"Globex":        ok("https://globex.io/careers", globexPage),
	}}
	writer := &lockingWriter{next: repo, locked: map[string]bool{}}
	queue := recovery.NewQueue(filepath.Join(t.TempDir(), "recovery.jsonl"), logger)
	notifier := &recordingNotifier{}

	gateway := persistence.New(writer, queue, persistence.Options{
		Backoff: persistence.ZeroDelayBackoff(),
		Logger:  logger,
	})

	p := New(Deps{
		Source:    source,
		Dedup:     dedup.New(repo, logger),
		Fetcher:   fetcher,
		Extractor: extractor.New(logger),
		Scorer:    scoring.NewRuleScorer(),
		Gateway:   gateway,
		Jobs:      repo,
		History:   repo,
		Notifier:  notifier,
	}, models.DefaultCriteria(), nil, logger)

	return &harness{pipeline: p, repo: repo, fetcher: fetcher, writer: writer, queue: queue, notifier: notifier}
}

func companies() stubSource {
	return stubSource{companies: []models.Company{
		{Name: "Acme Robotics", URL: "https://acme.io", Type: models.CompanyTypeCompany, FundingStage: "Series B"},
		{Name: "Initech", URL: "https://initech.com", Type: models.CompanyTypeCompany},
		{Name: "Globex", URL: "https://globex.io", Type: models.CompanyTypeCompany, Industry: "Robotics"},
	}}
}

func TestRunPersistsQualifyingJobs(t *testing.T) {
	h := newHarness(t, companies())

	s, err := h.pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, s.Companies)
	assert.Equal(t, 3, s.Processed)
	assert.Equal(t, 2, s.Fetched)
	assert.Equal(t, 3, s.Listings)
	assert.Equal(t, 1, s.Dropped)
	assert.Equal(t, 3, s.Scored)
	assert.Equal(t, 1, s.BelowThreshold)
	assert.Equal(t, 2, s.Inserted)
	assert.False(t, s.Cancelled)

	assert.Equal(t, []string{"Initech: no career page found"}, s.Failures[utils.KindNotFound])
	assert.Len(t, s.Failures[utils.KindValidation], 1)

	jobs, err := h.repo.ListJobs(context.Background(), models.JobFilter{})
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	urls := []string{jobs[0].URL, jobs[1].URL}
	assert.Contains(t, urls, "https://acme.io/jobs/101", "tracking params stripped before storage")
	assert.NotContains(t, urls, "https://acme.io/jobs/102")
	for _, j := range jobs {
		assert.GreaterOrEqual(t, j.Score, 70)
		assert.Equal(t, models.JobStatusNew, j.Status)
	}

	require.Len(t, h.notifier.digests, 1)
	assert.Len(t, h.notifier.digests[0].Jobs, 2)
	assert.Contains(t, h.notifier.digests[0].Report, "not_found (1)")

	runs, err := h.repo.ListRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, s.RunID, runs[0].ID)
	assert.Equal(t, 2, runs[0].Inserted)
}

func TestSecondRunAddsNothing(t *testing.T) {
	h := newHarness(t, companies())
	ctx := context.Background()

	_, err := h.pipeline.Run(ctx)
	require.NoError(t, err)

	s, err := h.pipeline.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, s.Inserted)
	assert.Zero(t, s.Updated)
	assert.Equal(t, 2, s.Duplicates)
	assert.Equal(t, 1, s.Scored, "only the unstored low scorer is scored again")
	assert.Empty(t, h.notifier.digests[1].Jobs)

	jobs, err := h.repo.ListJobs(ctx, models.JobFilter{})
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestRediscoveryKeepsUserStatus(t *testing.T) {
	h := newHarness(t, companies())
	ctx := context.Background()

	_, err := h.pipeline.Run(ctx)
	require.NoError(t, err)

	jobs, err := h.repo.ListJobs(ctx, models.JobFilter{})
	require.NoError(t, err)
	_, err = h.repo.UpdateJobStatus(ctx, jobs[0].ID, models.JobStatusApplied, nil, time.Now())
	require.NoError(t, err)

	_, err = h.pipeline.Run(ctx)
	require.NoError(t, err)

	stored, err := h.repo.GetJob(ctx, jobs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusApplied, stored.Status)
}

func TestLockedWriteIsSpooledAndBatchContinues(t *testing.T) {
	h := newHarness(t, companies())
	h.writer.locked["https://acme.io/jobs/101"] = true

	s, err := h.pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, s.Spooled)
	assert.Equal(t, 1, s.Inserted, "the next company is still processed")
	assert.Equal(t, []string{"https://acme.io/jobs/101"}, s.Failures[utils.KindPersistenceFailure])

	entries, err := h.queue.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "https://acme.io/jobs/101", entries[0].Job.URL)
}

func TestCancellationStopsBetweenCompanies(t *testing.T) {
	h := newHarness(t, companies())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.fetcher.onFetch = func(string) { cancel() }

	s, err := h.pipeline.Run(ctx)
	require.NoError(t, err)

	assert.True(t, s.Cancelled)
	assert.Equal(t, 1, s.Processed)
	assert.Equal(t, []string{"Acme Robotics"}, h.fetcher.calls)
	assert.Equal(t, 1, s.Inserted, "the company in flight completes")
	assert.Contains(t, s.Report(), "cancelled")
}

func TestDiscoveryFailureIsReturned(t *testing.T) {
	h := newHarness(t, stubSource{err: utils.NewConfigurationError("no discovery source configured")})

	s, err := h.pipeline.Run(context.Background())
	assert.Nil(t, s)
	assert.True(t, utils.IsKind(err, utils.KindConfiguration))
	assert.Empty(t, h.fetcher.calls)
}

func TestConcurrentRunIsRejected(t *testing.T) {
	h := newHarness(t, companies())
	var inner error
	h.fetcher.onFetch = func(string) {
		if inner == nil {
			_, inner = h.pipeline.Run(context.Background())
		}
	}

	_, err := h.pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, errors.Is(inner, ErrRunInProgress))
}

func TestReportListsFailures(t *testing.T) {
	s := newSummary("run_1", "manual", time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC))
	s.FinishedAt = s.StartedAt.Add(90 * time.Second)
	s.fail(utils.KindRateLimited, "Wayve: quota exhausted")
	s.fail(utils.KindNetwork, "Arm: timeout")
	s.fail(utils.KindNetwork, "Graphcore: timeout")

	report := s.Report()
	assert.Contains(t, report, "Run run_1 completed in 1.5m")
	assert.Contains(t, report, "failures:        3")
	assert.Less(t, strings.Index(report, "network_error (2)"), strings.Index(report, "rate_limited (1)"))
	assert.Contains(t, report, "- Graphcore: timeout")
	assert.Equal(t, 3, s.Record().Failures)
}

func TestFetchErrorKinds(t *testing.T) {
	tests := []struct {
		status models.FetchStatus
		want   utils.ErrorKind
	}{
		{models.FetchStatusNotFound, utils.KindNotFound},
		{models.FetchStatusRateLimited, utils.KindRateLimited},
		{models.FetchStatusNetworkError, utils.KindNetwork},
		{models.FetchStatusRejected, utils.KindConfiguration},
		{models.FetchStatus("teapot"), utils.KindInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			err := fetchError(models.FetchResult{Status: tt.status, Detail: "https://acme.io/careers"})
			assert.Equal(t, tt.want, utils.KindOf(err))
			assert.Contains(t, err.Error(), "https://acme.io/careers")
		})
	}
}
