package extractor

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	vacanciesRe  = regexp.MustCompile(`(?i)multiple vacancies available.*$`)
	escapedNLRe  = regexp.MustCompile(`\\[nr]`)

	// Places that show up on the career pages we scrape. Abbreviations are
	// matched case-sensitively so "us" in running text is not a location.
	locationRe = regexp.MustCompile(`\b([A-Z][a-z]+,\s*[A-Z]{2}|London|Cambridge|Oxford|Bristol|Edinburgh|Manchester|Remote|United Kingdom|UK|United States|US|New York|San Francisco|Austin|Boston|Berlin|Munich|Paris|Amsterdam|Zurich|Bengaluru)\b`)
)

// roleKeywords mark text as a plausible job title
var roleKeywords = []string{
	"manager", "engineer", "analyst", "associate", "director", "lead",
	"product", "software", "hardware", "data", "designer", "researcher",
	"scientist", "architect", "developer", "specialist", "coordinator",
	"principal", "senior", "junior", "staff", "intern", "partner", "head of",
}

// jobLinkHints mark a URL as pointing at a posting rather than site navigation
var jobLinkHints = []string{
	"job", "career", "position", "opening", "vacanc",
	"greenhouse.io", "lever.co", "ashbyhq.com", "workable.com",
}

// NormalizeTitle strips board noise and collapses whitespace
func NormalizeTitle(s string) string {
	s = escapedNLRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = vacanciesRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// LooksLikeTitle reports whether text reads like a job title
func LooksLikeTitle(text string) bool {
	if text == "" || len(text) > 160 {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range roleKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// SniffLocation returns the first known place mentioned in text
func SniffLocation(text string) string {
	return locationRe.FindString(text)
}

func looksLikeJobLink(raw string) bool {
	lower := strings.ToLower(raw)
	for _, hint := range jobLinkHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// resolveLink turns href into an absolute http(s) URL, or "" when it cannot
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}

func clip(s string, n int) string {
	s = whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
