package headed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscout/internal/config"
)

func TestSystemChromePathFromEnv(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "chromium")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))

	t.Run("CHROME_BIN", func(t *testing.T) {
		t.Setenv("CHROME_BIN", bin)
		assert.Equal(t, bin, getSystemChromePath())
	})

	t.Run("missing CHROME_BIN falls through to CHROME_PATH", func(t *testing.T) {
		t.Setenv("CHROME_BIN", filepath.Join(t.TempDir(), "gone"))
		t.Setenv("CHROME_PATH", bin)
		assert.Equal(t, bin, getSystemChromePath())
	})
}

const clientSideBoard = `<!doctype html>
<html><body>
<ul id="openings"></ul>
<script>
setTimeout(function () {
  var li = document.createElement("li");
  li.className = "opening";
  li.textContent = "Staff Platform Engineer";
  document.getElementById("openings").appendChild(li);
}, 50);
</script>
</body></html>`

func TestFetchRendersClientSideListings(t *testing.T) {
	if testing.Short() {
		t.Skip("launches a browser")
	}
	if getSystemChromePath() == "" {
		t.Skip("no local Chrome or Chromium")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/careers" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(clientSideBoard))
	}))
	defer srv.Close()

	cfg := &config.Config{}
	cfg.Scraper.HeadlessMode = true
	cfg.Scraper.RequestTimeout = 20 * time.Second

	p := NewProvider(cfg)
	p.settle = 300 * time.Millisecond
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"scripted listings are rendered", "/careers", http.StatusOK, "Staff Platform Engineer"},
		{"missing page keeps its status", "/jobs", http.StatusNotFound, "404 page not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := p.Fetch(ctx, srv.URL+tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Contains(t, resp.Body, tt.wantBody)
			assert.Equal(t, srv.URL+tt.path, resp.URL)
		})
	}
}
