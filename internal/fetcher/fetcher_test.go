package fetcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscout/internal/logging"
	"jobscout/internal/quota"
	"jobscout/internal/scraper"
	"jobscout/internal/scraper/workers"
	"jobscout/pkg/models"
	"jobscout/pkg/utils"
)

type reply struct {
	status int
	body   string
	err    error
}

// scriptedProvider answers each URL from a queue; unknown URLs get a 404
type scriptedProvider struct {
	replies map[string][]reply
	calls   []string
}

func (p *scriptedProvider) Fetch(_ context.Context, url string) (*scraper.Response, error) {
	p.calls = append(p.calls, url)
	queue := p.replies[url]
	if len(queue) == 0 {
		return &scraper.Response{URL: url, StatusCode: 404}, nil
	}
	r := queue[0]
	if len(queue) > 1 {
		p.replies[url] = queue[1:]
	}
	if r.err != nil {
		return nil, r.err
	}
	return &scraper.Response{URL: url, StatusCode: r.status, Body: r.body}, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }
func (p *scriptedProvider) Close() error { return nil }

type recordingUpdater struct {
	careerPages map[int64]string
	touches     int
}

func (u *recordingUpdater) UpdateCareerPage(_ context.Context, id int64, url string) error {
	if u.careerPages == nil {
		u.careerPages = make(map[int64]string)
	}
	u.careerPages[id] = url
	return nil
}

func (u *recordingUpdater) TouchLastScraped(context.Context, int64, time.Time) error {
	u.touches++
	return nil
}

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

type fixture struct {
	fetcher  *Fetcher
	provider *scriptedProvider
	updater  *recordingUpdater
	tracker  *quota.Tracker
	sleeps   *sleepRecorder
}

func newFixture(limit int, replies map[string][]reply) *fixture {
	clock := &utils.FixedClock{T: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	tracker := quota.NewTracker(quota.NewMemoryCounter(), quota.Options{
		ProviderLimit: limit,
		SafetyMargin:  0.9,
		Clock:         clock,
		Logger:        logging.NewNopLogger(),
	})

	sleeps := &sleepRecorder{}
	policy := DefaultPolicy()
	policy.Sleep = sleeps.sleep

	provider := &scriptedProvider{replies: replies}
	updater := &recordingUpdater{}
	return &fixture{
		fetcher: New(provider, tracker, updater, Options{
			Policy: policy,
			Clock:  clock,
			Logger: logging.NewNopLogger(),
		}),
		provider: provider,
		updater:  updater,
		tracker:  tracker,
		sleeps:   sleeps,
	}
}

func acme() *models.Company {
	return &models.Company{ID: 7, Name: "Acme Robotics", URL: "https://acme.io/"}
}

func TestCandidatesOrder(t *testing.T) {
	f := newFixture(100, nil)
	c := acme()
	c.CareerPageURL = "https://ACME.io/careers/"

	got := f.fetcher.Candidates(c)
	assert.Equal(t, []string{
		"https://ACME.io/careers/",
		"https://acme.io/jobs",
		"https://acme.io/team",
		"https://acme.io/join-us",
	}, got)
}

func TestKnownCareerPageTriedFirst(t *testing.T) {
	f := newFixture(100, map[string][]reply{
		"https://jobs.acme.io": {{status: 200, body: "<html>openings</html>"}},
	})
	c := acme()
	c.CareerPageURL = "https://jobs.acme.io"

	res := f.fetcher.FetchCareerPage(context.Background(), c)
	require.True(t, res.OK())
	assert.Equal(t, "https://jobs.acme.io", res.ResolvedURL)
	assert.Equal(t, []string{"https://jobs.acme.io"}, f.provider.calls)
	assert.Empty(t, f.updater.careerPages, "unchanged career page is not rewritten")
	assert.Equal(t, 1, f.updater.touches)
}

func TestCareerPageStoredOnFallbackSuccess(t *testing.T) {
	f := newFixture(100, map[string][]reply{
		"https://acme.io/jobs": {{status: 200, body: "<html>openings</html>"}},
	})
	c := acme()

	res := f.fetcher.FetchCareerPage(context.Background(), c)
	require.True(t, res.OK())
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "https://acme.io/jobs", f.updater.careerPages[7])
	assert.Equal(t, "https://acme.io/jobs", c.CareerPageURL)
	assert.NotNil(t, c.LastScrapedAt)
}

func TestAllCandidatesExhausted(t *testing.T) {
	f := newFixture(100, map[string][]reply{
		"https://acme.io/team": {{status: 200, body: "   "}},
	})

	res := f.fetcher.FetchCareerPage(context.Background(), acme())
	assert.Equal(t, models.FetchStatusNotFound, res.Status)
	assert.Equal(t, 4, res.Attempts)
	assert.Empty(t, f.updater.careerPages)
	assert.Equal(t, 1, f.updater.touches)
	assert.Empty(t, f.sleeps.delays, "not found is never retried")
}

func TestNetworkErrorRetriedOnceThenAdvances(t *testing.T) {
	timeout := fmt.Errorf("%w: timeout", scraper.ErrNetwork)
	f := newFixture(100, map[string][]reply{
		"https://acme.io/careers": {{err: timeout}, {err: timeout}},
		"https://acme.io/jobs":    {{status: 200, body: "listings"}},
	})

	res := f.fetcher.FetchCareerPage(context.Background(), acme())
	require.True(t, res.OK())
	assert.Equal(t, []string{
		"https://acme.io/careers",
		"https://acme.io/careers",
		"https://acme.io/jobs",
	}, f.provider.calls)
	assert.Equal(t, []time.Duration{5 * time.Second}, f.sleeps.delays)
}

func TestServerErrorRecoversOnRetry(t *testing.T) {
	f := newFixture(100, map[string][]reply{
		"https://acme.io/careers": {{status: 503}, {status: 200, body: "listings"}},
	})

	res := f.fetcher.FetchCareerPage(context.Background(), acme())
	require.True(t, res.OK())
	assert.Equal(t, "https://acme.io/careers", res.ResolvedURL)
	assert.Equal(t, 2, res.Attempts)
}

func TestRateLimitRetriedOnceThenAborts(t *testing.T) {
	f := newFixture(100, map[string][]reply{
		"https://acme.io/careers": {{status: 429}, {err: scraper.ErrRateLimited}},
		"https://acme.io/jobs":    {{status: 200, body: "listings"}},
	})

	res := f.fetcher.FetchCareerPage(context.Background(), acme())
	assert.Equal(t, models.FetchStatusRateLimited, res.Status)
	assert.False(t, res.QuotaDenied)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, []time.Duration{60 * time.Second}, f.sleeps.delays)
	assert.NotContains(t, f.provider.calls, "https://acme.io/jobs")
	assert.Equal(t, 1, f.updater.touches)
}

func TestQuotaAtCeilingMakesNoAttempt(t *testing.T) {
	// limit 1 with a 0.9 margin leaves no budget
	f := newFixture(1, map[string][]reply{
		"https://acme.io/careers": {{status: 200, body: "listings"}},
	})
	c := acme()

	res := f.fetcher.FetchCareerPage(context.Background(), c)
	assert.Equal(t, models.FetchStatusRateLimited, res.Status)
	assert.True(t, res.QuotaDenied)
	assert.Zero(t, res.Attempts)
	assert.Empty(t, f.provider.calls)
	assert.Zero(t, f.updater.touches)
	assert.Nil(t, c.LastScrapedAt)
}

func TestQuotaExhaustedMidWalk(t *testing.T) {
	// limit 3 gives a ceiling of 2
	f := newFixture(3, nil)

	res := f.fetcher.FetchCareerPage(context.Background(), acme())
	assert.Equal(t, models.FetchStatusRateLimited, res.Status)
	assert.True(t, res.QuotaDenied)
	assert.Equal(t, 2, res.Attempts)

	usage, err := f.tracker.Usage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, usage.Used)
}

func TestCancelledContextReportsNetworkError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newFixture(100, nil)
	f.provider.replies = map[string][]reply{
		"https://acme.io/careers": {{err: errors.New("boom")}},
	}
	f.fetcher.policy.Sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	res := f.fetcher.FetchCareerPage(ctx, acme())
	assert.Equal(t, models.FetchStatusNetworkError, res.Status)
	assert.Equal(t, 1, res.Attempts)
}

func TestProviderRejectionStopsWalk(t *testing.T) {
	f := newFixture(100, map[string][]reply{
		"https://acme.io/careers": {{err: fmt.Errorf("%w: Payment Required: Failed to scrape URL", scraper.ErrUnauthorized)}},
		"https://acme.io/jobs":    {{status: 200, body: "listings"}},
	})

	res := f.fetcher.FetchCareerPage(context.Background(), acme())
	assert.Equal(t, models.FetchStatusRejected, res.Status)
	assert.Contains(t, res.Detail, "Payment Required")
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, []string{"https://acme.io/careers"}, f.provider.calls)
	assert.Empty(t, f.sleeps.delays, "a rejected account is never retried")
	assert.Equal(t, 1, f.updater.touches)
}

func breakerAfterOneFailure() *workers.RateLimiter {
	return workers.NewRateLimiter(workers.LimiterOptions{
		RequestsPerSecond: 1000,
		Burst:             10,
		MaxFailures:       1,
		ResetTimeout:      time.Hour,
		Logger:            logging.NewNopLogger(),
	})
}

func TestOpenCircuitIsNotChargedOrRetried(t *testing.T) {
	reset := fmt.Errorf("%w: connection reset", scraper.ErrNetwork)
	f := newFixture(100, map[string][]reply{
		"https://acme.io/careers": {{err: reset}},
	})
	f.fetcher.provider = workers.WrapProvider(f.provider, breakerAfterOneFailure())

	res := f.fetcher.FetchCareerPage(context.Background(), acme())
	assert.Equal(t, models.FetchStatusNetworkError, res.Status)
	assert.Contains(t, res.Detail, "circuit breaker open")
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, []string{"https://acme.io/careers"}, f.provider.calls)

	usage, err := f.tracker.Usage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, usage.Used, "only the request that reached the provider is charged")
}

func TestOpenCircuitSkipsToNextHost(t *testing.T) {
	rl := breakerAfterOneFailure()
	rl.RecordFailure("jobs.acme-ats.com", errors.New("connection refused"))

	f := newFixture(100, map[string][]reply{
		"https://acme.io/careers": {{status: 200, body: "listings"}},
	})
	f.fetcher.provider = workers.WrapProvider(f.provider, rl)
	c := acme()
	c.CareerPageURL = "https://jobs.acme-ats.com/openings"

	res := f.fetcher.FetchCareerPage(context.Background(), c)
	require.True(t, res.OK())
	assert.Equal(t, "https://acme.io/careers", res.ResolvedURL)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, []string{"https://acme.io/careers"}, f.provider.calls)
	assert.Empty(t, f.sleeps.delays)

	usage, err := f.tracker.Usage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, usage.Used)
}

func TestCircuitOpenErrorMovesOnWithoutRetry(t *testing.T) {
	f := newFixture(100, map[string][]reply{
		"https://acme.io/careers": {{err: fmt.Errorf("%w for acme.io", scraper.ErrCircuitOpen)}},
		"https://acme.io/jobs":    {{status: 200, body: "listings"}},
	})

	res := f.fetcher.FetchCareerPage(context.Background(), acme())
	require.True(t, res.OK())
	assert.Equal(t, []string{"https://acme.io/careers", "https://acme.io/jobs"}, f.provider.calls)
	assert.Empty(t, f.sleeps.delays)
}
