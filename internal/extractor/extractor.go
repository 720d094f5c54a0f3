// Package extractor turns fetched career page content into candidate listings.
package extractor

import (
	"fmt"
	"io"
	"iter"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-playground/validator/v10"

	"jobscout/internal/logging"
	"jobscout/internal/logging/types"
	"jobscout/pkg/models"
	"jobscout/pkg/utils"
)

const maxDescription = 500

// Extractor parses ATS layouts, generic link blocks and markdown boards
type Extractor struct {
	validate *validator.Validate
	logger   types.Logger
}

// New creates an Extractor. A nil logger uses the global logger.
func New(logger types.Logger) *Extractor {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Extractor{
		validate: validator.New(),
		logger:   logger.WithField("component", "extractor"),
	}
}

// Extract returns a single-use sequence of valid listings found in content.
//
// content is read on the first iteration; iterating again yields nothing.
// Listings missing a title or a resolvable URL are passed to onDrop as
// validation errors and never yielded. A URL appearing twice on one page is
// yielded once.
func (e *Extractor) Extract(content io.Reader, pageURL string, onDrop func(error)) iter.Seq[models.RawListing] {
	var consumed atomic.Bool

	return func(yield func(models.RawListing) bool) {
		if consumed.Swap(true) {
			return
		}

		data, err := io.ReadAll(content)
		if err != nil {
			e.logger.Warn("Failed to read page content", map[string]interface{}{
				"url":   pageURL,
				"error": err.Error(),
			})
			return
		}

		page, err := url.Parse(pageURL)
		if err != nil || page.Host == "" {
			page = nil
		}

		candidates, base := e.candidates(string(data), page)
		seen := make(map[string]bool, len(candidates))

		for _, c := range candidates {
			href := c.href
			if href == "" && c.strategy == "markdown_heading" && page != nil {
				href = page.String()
			}

			listing := models.RawListing{
				Title:       NormalizeTitle(c.title),
				Description: clip(c.description, maxDescription),
				URL:         resolveLink(base, href),
				Location:    strings.TrimSpace(c.location),
			}
			if listing.Location == "" {
				listing.Location = SniffLocation(c.description)
			}

			if err := e.validate.Struct(listing); err != nil {
				if onDrop != nil {
					onDrop(utils.NewValidationError(fmt.Sprintf("%s listing %q (%s): %v", c.strategy, listing.Title, c.href, err)))
				}
				continue
			}
			if seen[listing.URL] {
				continue
			}
			seen[listing.URL] = true

			if !yield(listing) {
				return
			}
		}
	}
}

// candidates runs the strategies in order and returns the base URL links resolve against
func (e *Extractor) candidates(content string, page *url.URL) ([]candidate, *url.URL) {
	base := page

	if looksLikeHTML(content) {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
		if err != nil {
			e.logger.Warn("Failed to parse page as HTML", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			base = baseFor(doc, page)
			if found := fromHTML(doc); len(found) > 0 {
				e.logStrategy(found[0].strategy, len(found))
				return found, base
			}
		}
	}

	found := fromMarkdown(content)
	if len(found) > 0 {
		e.logStrategy(found[0].strategy, len(found))
	}
	return found, base
}

func (e *Extractor) logStrategy(strategy string, n int) {
	e.logger.Debug("Extraction strategy matched", map[string]interface{}{
		"strategy":   strategy,
		"candidates": n,
	})
}
