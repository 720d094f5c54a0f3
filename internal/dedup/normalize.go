package dedup

import (
	"net/url"
	"strings"

	"jobscout/pkg/utils"
)

// trackingParams never change which posting a URL points at
var trackingParams = map[string]bool{
	"gclid":         true,
	"fbclid":        true,
	"ref":           true,
	"source":        true,
	"gh_src":        true,
	"lever-source":  true,
	"lever-origin":  true,
	"trk":           true,
	"mc_cid":        true,
	"mc_eid":        true,
	"_hsenc":        true,
	"_hsmi":         true,
	"referrer":      true,
	"ashby_jid_src": true,
}

// NormalizeCompanyName case-folds, trims and collapses internal whitespace
func NormalizeCompanyName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// NormalizeJobURL drops tracking parameters, the fragment and a trailing slash.
// Scheme and host are lower-cased; the path keeps its case. LinkedIn postings
// collapse to their public view URL. Unparseable input is returned trimmed.
func NormalizeJobURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if canonical, ok := utils.CanonicalLinkedInJobURL(raw); ok {
		return canonical
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			lower := strings.ToLower(key)
			if trackingParams[lower] || strings.HasPrefix(lower, "utm_") {
				q.Del(key)
			}
		}
		u.RawQuery = q.Encode()
	}

	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String()
}
