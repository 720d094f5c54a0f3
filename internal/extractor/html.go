package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// layout describes where an applicant tracking system puts each field
type layout struct {
	name     string
	item     string
	link     string
	title    string
	location string
}

// atsLayouts are tried in order; the first that produces anything wins
var atsLayouts = []layout{
	{
		name:     "greenhouse",
		item:     "div.opening, tr.job-post",
		link:     "a",
		title:    "a, p.body--medium",
		location: "span.location, p.body__secondary",
	},
	{
		name:     "lever",
		item:     "div.posting",
		link:     "a.posting-title, a.posting-btn-submit",
		title:    "h5[data-qa='posting-name'], h5",
		location: ".posting-categories .location, span.sort-by-location",
	},
	{
		name:     "ashby",
		item:     "a[href*='jobs.ashbyhq.com'], div.ashby-job-posting-brief-list a",
		title:    "h3",
		location: "p",
	},
	{
		name:     "workable",
		item:     "li[data-ui='job'], li[data-ui='job-opening']",
		link:     "a",
		title:    "h3[data-ui='job-title'], h3",
		location: "span[data-ui='job-location'], [data-ui='job-location']",
	},
}

// candidate is an unvalidated listing with its producing strategy
type candidate struct {
	strategy    string
	title       string
	href        string
	location    string
	description string
}

func fromHTML(doc *goquery.Document) []candidate {
	for _, l := range atsLayouts {
		if found := l.extract(doc); len(found) > 0 {
			return found
		}
	}
	return genericBlocks(doc)
}

func (l layout) extract(doc *goquery.Document) []candidate {
	var out []candidate
	doc.Find(l.item).Each(func(_ int, item *goquery.Selection) {
		link := item
		if l.link != "" && goquery.NodeName(item) != "a" {
			link = item.Find(l.link).First()
		}

		title := ""
		if l.title != "" {
			title = item.Find(l.title).First().Text()
		}
		if strings.TrimSpace(title) == "" {
			title = link.Text()
		}

		location := ""
		if l.location != "" {
			location = item.Find(l.location).First().Text()
		}

		out = append(out, candidate{
			strategy:    l.name,
			title:       title,
			href:        link.AttrOr("href", ""),
			location:    strings.TrimSpace(location),
			description: item.Text(),
		})
	})
	return out
}

// genericBlocks finds links that sit in repeated sibling structures
// (li, tr, article, div sharing a class) and carry a title-like text.
func genericBlocks(doc *goquery.Document) []candidate {
	type block struct {
		container *goquery.Selection
		link      *goquery.Selection
	}

	var (
		blocks []block
		counts = make(map[string]int)
		sigs   []string
	)

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		container := a.Closest("li, tr, article, div")
		if container.Length() == 0 {
			return
		}
		sig := signature(container)
		counts[sig]++
		sigs = append(sigs, sig)
		blocks = append(blocks, block{container: container, link: a})
	})

	var out []candidate
	for i, b := range blocks {
		if counts[sigs[i]] < 2 {
			continue
		}

		title := b.container.Find("h1, h2, h3, h4").First().Text()
		if strings.TrimSpace(title) == "" {
			title = b.link.Text()
		}
		title = NormalizeTitle(title)
		if !LooksLikeTitle(title) {
			continue
		}

		text := b.container.Text()
		out = append(out, candidate{
			strategy:    "generic",
			title:       title,
			href:        b.link.AttrOr("href", ""),
			location:    SniffLocation(text),
			description: text,
		})
	}
	return out
}

// signature identifies a block by tag, class and parent tag
func signature(s *goquery.Selection) string {
	parent := goquery.NodeName(s.Parent())
	return parent + ">" + goquery.NodeName(s) + "." + strings.Join(strings.Fields(s.AttrOr("class", "")), ".")
}

func looksLikeHTML(content string) bool {
	head := strings.ToLower(content)
	if len(head) > 4096 {
		head = head[:4096]
	}
	for _, tag := range []string{"<html", "<body", "<div", "<a ", "<ul", "<table", "<section", "<!doctype"} {
		if strings.Contains(head, tag) {
			return true
		}
	}
	return false
}

// baseFor prefers the document's <base href> over the page URL
func baseFor(doc *goquery.Document, page *url.URL) *url.URL {
	href, ok := doc.Find("base[href]").First().Attr("href")
	if !ok {
		return page
	}
	ref, err := url.Parse(href)
	if err != nil {
		return page
	}
	if page != nil {
		return page.ResolveReference(ref)
	}
	return ref
}
