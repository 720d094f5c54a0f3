package utils

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	linkedInJobViewRe = regexp.MustCompile(`^/jobs/view/(?:[^/]*-)?(\d+)/?$`)
	numericRe         = regexp.MustCompile(`^\d+$`)
)

// IsLinkedInURL checks if a URL is a LinkedIn URL
func IsLinkedInURL(urlStr string) bool {
	if urlStr == "" {
		return false
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	hostname := strings.ToLower(parsedURL.Hostname())
	return hostname == "linkedin.com" || strings.HasSuffix(hostname, ".linkedin.com")
}

// LinkedInJobID extracts the posting id from the URL shapes LinkedIn links to a
// job with: /jobs/view/123, /jobs/view/some-title-123 and collection pages
// carrying currentJobId.
func LinkedInJobID(urlStr string) (string, bool) {
	if !IsLinkedInURL(urlStr) {
		return "", false
	}
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", false
	}

	path := strings.ToLower(parsedURL.Path)
	if m := linkedInJobViewRe.FindStringSubmatch(path); m != nil {
		return m[1], true
	}

	if strings.HasPrefix(path, "/jobs/collections/") || strings.HasPrefix(path, "/jobs/search") {
		if id := parsedURL.Query().Get("currentJobId"); numericRe.MatchString(id) {
			return id, true
		}
	}
	return "", false
}

// CanonicalLinkedInJobURL returns the public view URL for a LinkedIn posting
func CanonicalLinkedInJobURL(urlStr string) (string, bool) {
	id, ok := LinkedInJobID(urlStr)
	if !ok {
		return "", false
	}
	return "https://www.linkedin.com/jobs/view/" + id, true
}
