package extractor

import (
	"regexp"
	"strings"
)

var (
	mdLinkRe    = regexp.MustCompile(`(?s)(!?)\[(.*?)\]\((https?://[^)\s]+)\)`)
	mdHeadingRe = regexp.MustCompile(`^#+\s+`)
	mdURLRe     = regexp.MustCompile(`\((https?://[^)\s]+)\)`)
	lineSplitRe = regexp.MustCompile(`\\n|\n`)
)

// fromMarkdown reads links whose target looks like a posting, and falls back
// to headings when the page has none.
func fromMarkdown(content string) []candidate {
	if found := markdownLinks(content); len(found) > 0 {
		return found
	}
	return markdownHeadings(content)
}

func markdownLinks(content string) []candidate {
	var out []candidate
	for _, m := range mdLinkRe.FindAllStringSubmatch(content, -1) {
		if m[1] == "!" {
			continue
		}
		text, href := m[2], m[3]
		if !looksLikeJobLink(href) {
			continue
		}

		var parts []string
		for _, p := range lineSplitRe.Split(text, -1) {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			continue
		}

		title := NormalizeTitle(parts[0])
		if !LooksLikeTitle(title) {
			continue
		}

		var location, department string
		for _, p := range parts[1:] {
			switch {
			case location == "" && SniffLocation(p) != "":
				location = p
			case department == "" && (strings.Contains(p, "Engineering") || strings.Contains(p, "Research") || strings.Contains(p, "Operations")):
				department = p
			}
		}
		if location == "" {
			location = SniffLocation(text)
		}

		description := department
		if description == "" {
			description = clip(lineSplitRe.ReplaceAllString(text, " "), 200)
		}

		out = append(out, candidate{
			strategy:    "markdown_link",
			title:       title,
			href:        href,
			location:    location,
			description: description,
		})
	}
	return out
}

// markdownHeadings treats title-like headings as postings. A posting takes the
// first link found under its heading; without one it points at the page itself.
func markdownHeadings(content string) []candidate {
	var (
		out     []candidate
		current *candidate
		body    []string
	)
	flush := func() {
		if current == nil {
			return
		}
		current.description = clip(strings.Join(body, " "), 500)
		out = append(out, *current)
		current, body = nil, nil
	}

	for _, line := range strings.Split(content, "\n") {
		if mdHeadingRe.MatchString(line) {
			title := NormalizeTitle(mdHeadingRe.ReplaceAllString(line, ""))
			if LooksLikeTitle(title) {
				flush()
				current = &candidate{strategy: "markdown_heading", title: title}
			}
			continue
		}
		if current == nil {
			continue
		}
		if current.href == "" {
			if m := mdURLRe.FindStringSubmatch(line); m != nil {
				current.href = m[1]
			}
		}
		if current.location == "" {
			if strings.Contains(line, "Location:") {
				current.location = strings.TrimSpace(strings.SplitN(line, "Location:", 2)[1])
			} else if loc := SniffLocation(line); loc != "" {
				current.location = loc
			}
		}
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			body = append(body, trimmed)
		}
	}
	flush()
	return out
}
