package hybrid

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscout/internal/logging"
	"jobscout/internal/scraper"
	"jobscout/internal/scraper/engines/direct"
)

type stubProvider struct {
	name  string
	resp  *scraper.Response
	err   error
	calls []string
}

func (s *stubProvider) Name() string { return s.name }
func (s *stubProvider) Close() error { return nil }

func (s *stubProvider) Fetch(_ context.Context, url string) (*scraper.Response, error) {
	s.calls = append(s.calls, url)
	if s.err != nil {
		return nil, s.err
	}
	r := *s.resp
	r.URL = url
	return &r, nil
}

const challenge = `<html><title>Just a moment...</title><div id="cf-chl-widget"></div></html>`

func TestPrimaryPageIsReturned(t *testing.T) {
	primary := &stubProvider{name: "direct", resp: &scraper.Response{StatusCode: 200, Body: "<div class=opening>PM</div>"}}
	fallback := &stubProvider{name: "firecrawl", resp: &scraper.Response{StatusCode: 200}}
	p := NewProvider(primary, fallback, nil)

	resp, err := p.Fetch(context.Background(), "https://acme.io/careers")
	require.NoError(t, err)
	assert.Contains(t, resp.Body, "opening")
	assert.Empty(t, fallback.calls)
}

func TestChallengeFallsBackAndIsRemembered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked.txt")
	primary := &stubProvider{name: "direct", resp: &scraper.Response{StatusCode: 403, Body: challenge}}
	fallback := &stubProvider{name: "firecrawl", resp: &scraper.Response{StatusCode: 200, Body: "# Careers"}}
	p := NewProvider(primary, fallback, NewBlockedDomains(path, logging.NewNopLogger()))

	resp, err := p.Fetch(context.Background(), "https://www.acme.io/careers")
	require.NoError(t, err)
	assert.Equal(t, "# Careers", resp.Body)

	_, err = p.Fetch(context.Background(), "https://acme.io/jobs")
	require.NoError(t, err)
	assert.Len(t, primary.calls, 1, "known blocked host skips the primary")
	assert.Len(t, fallback.calls, 2)

	reloaded := NewBlockedDomains(path, logging.NewNopLogger())
	assert.True(t, reloaded.Contains("https://acme.io/anything"))
}

func TestPrimaryErrorsAreNotMasked(t *testing.T) {
	primary := &stubProvider{name: "direct", err: scraper.ErrNetwork}
	fallback := &stubProvider{name: "firecrawl", resp: &scraper.Response{StatusCode: 200}}
	p := NewProvider(primary, fallback, nil)

	_, err := p.Fetch(context.Background(), "https://acme.io/careers")
	assert.True(t, errors.Is(err, scraper.ErrNetwork))
	assert.Empty(t, fallback.calls)
}

func TestIsChallenge(t *testing.T) {
	assert.True(t, IsChallenge(&scraper.Response{StatusCode: 503, Body: challenge}))
	assert.True(t, IsChallenge(&scraper.Response{StatusCode: 200, Body: "<p>Please complete the CAPTCHA</p>"}))
	assert.False(t, IsChallenge(&scraper.Response{StatusCode: 404, Body: "captcha"}))
	assert.False(t, IsChallenge(&scraper.Response{StatusCode: 403, Body: "Forbidden"}))
	assert.False(t, IsChallenge(nil))
}

func TestDirectPrimaryAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/careers":
			w.Write([]byte(`<ul><li class="opening">Staff Engineer</li></ul>`))
		case "/interstitial":
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(challenge))
		case "/maintenance":
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`<script src="/cdn-cgi/challenge-platform/h/b/orchestrate"></script>`))
		case "/busy":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tests := []struct {
		name         string
		path         string
		wantStatus   int
		wantBody     string
		wantErr      error
		wantFallback bool
	}{
		{name: "rendered page", path: "/careers", wantStatus: 200, wantBody: "Staff Engineer"},
		{name: "challenge on 403", path: "/interstitial", wantStatus: 200, wantBody: "# Careers", wantFallback: true},
		{name: "challenge on 503", path: "/maintenance", wantStatus: 200, wantBody: "# Careers", wantFallback: true},
		{name: "plain not found", path: "/team", wantStatus: 404, wantBody: "404 page not found"},
		{name: "rate limited", path: "/busy", wantErr: scraper.ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := direct.NewProviderWithClient(&http.Client{Timeout: 2 * time.Second}, "jobscout-test")
			fallback := &stubProvider{name: "firecrawl", resp: &scraper.Response{StatusCode: 200, Body: "# Careers"}}
			blocked := NewBlockedDomains("", logging.NewNopLogger())
			p := NewProvider(primary, fallback, blocked)
			defer p.Close()

			url := srv.URL + tt.path
			resp, err := p.Fetch(context.Background(), url)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, fallback.calls)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Contains(t, resp.Body, tt.wantBody)
			assert.Equal(t, url, resp.URL)

			if tt.wantFallback {
				assert.Equal(t, []string{url}, fallback.calls, "one fallback call per fetch")
				assert.True(t, blocked.Contains(url))
			} else {
				assert.Empty(t, fallback.calls)
				assert.False(t, blocked.Contains(url))
			}
		})
	}
}
