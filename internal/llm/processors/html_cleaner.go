package processors

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	markupRegex     = regexp.MustCompile(`<[a-zA-Z/!][^>]*>`)

	// Boilerplate that leaks into scraped posting text
	noisePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bJavaScript\s+is\s+disabled\b.*?enabled\.`),
		regexp.MustCompile(`(?i)\bCookies?\s+are\s+disabled\b.*?enabled\.`),
		regexp.MustCompile(`(?i)\bPlease\s+enable\s+JavaScript\b[^.]*\.?`),
		regexp.MustCompile(`(?i)\bThis\s+site\s+requires\s+JavaScript\b[^.]*\.?`),
		regexp.MustCompile(`(?i)\bWe\s+use\s+cookies\b[^.]*\.`),
	}
)

// HTMLCleaner turns posting text that may still carry markup into plain prose
type HTMLCleaner struct {
	// Tags to remove completely
	removeTags []string
}

// NewHTMLCleaner creates a new HTML cleaner instance
func NewHTMLCleaner() *HTMLCleaner {
	return &HTMLCleaner{
		removeTags: []string{
			"script", "style", "noscript", "iframe", "object", "embed",
			"form", "input", "button", "select", "textarea",
			"nav", "header", "footer", "aside", "menu",
			"svg", "meta", "link", "title", "base",
		},
	}
}

// CleanText strips markup and boilerplate and collapses whitespace.
// Plain text passes through the text cleanup only.
func (hc *HTMLCleaner) CleanText(content string) string {
	if markupRegex.MatchString(content) {
		if text, err := hc.stripMarkup(content); err == nil {
			content = text
		}
	}
	return hc.cleanExtractedText(content)
}

// Truncate cuts text to roughly maxTokens tokens
func (hc *HTMLCleaner) Truncate(text string, maxTokens int) string {
	limit := maxTokens * 4
	if maxTokens <= 0 || len(text) <= limit {
		return text
	}
	cut := text[:limit]
	if i := strings.LastIndexByte(cut, ' '); i > limit/2 {
		cut = cut[:i]
	}
	return cut + "..."
}

// EstimateTokens returns the approximate token count for text
func (hc *HTMLCleaner) EstimateTokens(text string) int {
	// Rough estimation: ~4 characters per token
	return len(text) / 4
}

func (hc *HTMLCleaner) stripMarkup(content string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", err
	}

	for _, tag := range hc.removeTags {
		doc.Find(tag).Remove()
	}

	// Keep block boundaries as spaces so words from adjacent elements don't merge
	doc.Find("p, li, br, div, h1, h2, h3, h4, h5, h6, tr").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})

	return doc.Text(), nil
}

func (hc *HTMLCleaner) cleanExtractedText(text string) string {
	for _, re := range noisePatterns {
		text = re.ReplaceAllString(text, "")
	}
	text = whitespaceRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
