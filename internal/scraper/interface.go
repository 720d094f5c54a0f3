// Package scraper defines the Fetch Provider contract implemented by the
// engines under scraper/engines.
package scraper

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrRateLimited is returned when the provider itself refuses the request
	ErrRateLimited = errors.New("provider rate limited")
	// ErrNetwork is returned for transport failures and timeouts
	ErrNetwork = errors.New("provider network error")
	// ErrUnauthorized is returned when the provider rejects the account: bad key or no credits left
	ErrUnauthorized = errors.New("provider rejected credentials")
	// ErrCircuitOpen is returned when a request was refused locally and never sent
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// Content types reported by providers
const (
	ContentHTML     = "text/html"
	ContentMarkdown = "text/markdown"
)

// Response is the raw result of fetching one URL. A non-2xx StatusCode is not an error.
type Response struct {
	URL         string
	StatusCode  int
	Body        string
	ContentType string
}

// Provider fetches a single URL
type Provider interface {
	Fetch(ctx context.Context, url string) (*Response, error)

	// Name identifies the engine in logs
	Name() string

	// Close releases any resources used by the provider
	Close() error
}

// IsMarkdown reports whether the response body is markdown rather than HTML
func (r *Response) IsMarkdown() bool {
	return strings.HasPrefix(r.ContentType, ContentMarkdown)
}
