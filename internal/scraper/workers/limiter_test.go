package workers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscout/internal/logging"
	"jobscout/internal/scraper"
)

type stubProvider struct {
	calls int
	err   error
}

func (s *stubProvider) Fetch(_ context.Context, url string) (*scraper.Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &scraper.Response{URL: url, StatusCode: 200, Body: "ok"}, nil
}

func (s *stubProvider) Name() string { return "stub" }
func (s *stubProvider) Close() error { return nil }

func newTestLimiter() *RateLimiter {
	return NewRateLimiter(LimiterOptions{
		RequestsPerSecond: 1000,
		Burst:             10,
		MaxFailures:       2,
		ResetTimeout:      time.Minute,
		Logger:            logging.NewNopLogger(),
	})
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	ctx := context.Background()
	rl := newTestLimiter()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	inner := &stubProvider{err: fmt.Errorf("%w: connection reset", scraper.ErrNetwork)}
	p := WrapProvider(inner, rl)

	for i := 0; i < 2; i++ {
		_, err := p.Fetch(ctx, "https://Acme.io/careers")
		assert.ErrorIs(t, err, scraper.ErrNetwork)
	}
	assert.Equal(t, "open", rl.GetDomainStats("acme.io")["circuit_state"])
	assert.False(t, p.Admits("https://acme.io/jobs"))

	_, err := p.Fetch(ctx, "https://acme.io/jobs")
	assert.ErrorIs(t, err, scraper.ErrCircuitOpen)
	assert.NotErrorIs(t, err, scraper.ErrNetwork, "a local refusal is not a transport failure")
	assert.Equal(t, 2, inner.calls, "open breaker short-circuits the call")

	now = now.Add(2 * time.Minute)
	assert.True(t, p.Admits("https://acme.io/jobs"))
	inner.err = nil
	resp, err := p.Fetch(ctx, "https://acme.io/jobs")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Body)
	assert.Equal(t, "closed", rl.GetDomainStats("acme.io")["circuit_state"])
}

func TestRateLimitedErrorsDoNotTripBreaker(t *testing.T) {
	rl := newTestLimiter()
	p := WrapProvider(&stubProvider{err: scraper.ErrRateLimited}, rl)

	for i := 0; i < 5; i++ {
		_, err := p.Fetch(context.Background(), "https://acme.io/careers")
		assert.True(t, errors.Is(err, scraper.ErrRateLimited))
	}
	assert.NotEqual(t, "open", rl.GetDomainStats("acme.io")["circuit_state"])
}

func TestWaitHonoursContext(t *testing.T) {
	rl := NewRateLimiter(LimiterOptions{RequestsPerSecond: 0.001, Burst: 1, Logger: logging.NewNopLogger()})
	ctx := context.Background()
	require.NoError(t, rl.Wait(ctx, "acme.io"))

	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx, "acme.io"))
}

func TestCleanup(t *testing.T) {
	rl := newTestLimiter()
	now := time.Now()
	rl.now = func() time.Time { return now }
	require.NoError(t, rl.Wait(context.Background(), "acme.io"))

	now = now.Add(time.Hour)
	assert.Equal(t, 1, rl.Cleanup(10*time.Minute))
	assert.Empty(t, rl.GetAllStats())
}

func TestExtractDomain(t *testing.T) {
	assert.Equal(t, "boards.greenhouse.io", extractDomainFromURL("https://Boards.Greenhouse.io/acme"))
	assert.Equal(t, "unknown", extractDomainFromURL("not a url"))
}
