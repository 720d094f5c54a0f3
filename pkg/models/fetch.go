package models

// FetchStatus is the terminal state of a career page fetch. Rejected means the
// provider refused the account itself, so no other candidate can succeed.
type FetchStatus string

const (
	FetchStatusOK           FetchStatus = "ok"
	FetchStatusNotFound     FetchStatus = "not_found"
	FetchStatusRateLimited  FetchStatus = "rate_limited"
	FetchStatusNetworkError FetchStatus = "network_error"
	FetchStatusRejected     FetchStatus = "provider_rejected"
)

// FetchResult is returned by the page fetcher for one company. QuotaDenied is
// set when the local scrape budget, not the provider, stopped the fetch.
type FetchResult struct {
	Status      FetchStatus `json:"status"`
	Content     string      `json:"-"`
	ResolvedURL string      `json:"resolved_url,omitempty"`
	Attempts    int         `json:"attempts"`
	Detail      string      `json:"detail,omitempty"`
	QuotaDenied bool        `json:"quota_denied,omitempty"`
}

// OK reports whether the fetch produced content
func (r FetchResult) OK() bool {
	return r.Status == FetchStatusOK
}
