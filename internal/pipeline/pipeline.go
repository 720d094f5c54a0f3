// Package pipeline drives a discovery run: for each company it resolves
// identity, fetches the career page, extracts listings, skips known postings,
// scores the rest and persists the qualifying ones.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"jobscout/internal/dedup"
	"jobscout/internal/discovery"
	"jobscout/internal/extractor"
	"jobscout/internal/logging"
	"jobscout/internal/logging/types"
	"jobscout/internal/scoring"
	"jobscout/internal/store"
	"jobscout/pkg/models"
	"jobscout/pkg/utils"
)

// ErrRunInProgress is returned when Run is called while another run is active
var ErrRunInProgress = errors.New("pipeline: a run is already in progress")

// Fetcher resolves and downloads a company's career page
type Fetcher interface {
	FetchCareerPage(ctx context.Context, c *models.Company) models.FetchResult
}

// Gateway persists qualifying jobs
type Gateway interface {
	UpsertJob(ctx context.Context, job *models.Job) (models.Outcome, error)
	MinScore() int
}

// JobToucher refreshes last-seen on postings found again
type JobToucher interface {
	TouchJob(ctx context.Context, url string, at time.Time) error
}

// HistoryRecorder stores finished runs
type HistoryRecorder interface {
	RecordRun(ctx context.Context, run *store.RunRecord) error
}

// Notifier receives the jobs a run stored for the first time
type Notifier interface {
	Notify(ctx context.Context, digest models.Digest) error
}

// Deps are the collaborators of a Pipeline. History and Notifier are optional.
type Deps struct {
	Source    discovery.Source
	Dedup     *dedup.Deduplicator
	Fetcher   Fetcher
	Extractor *extractor.Extractor
	Scorer    scoring.Scorer
	Gateway   Gateway
	Jobs      JobToucher
	History   HistoryRecorder
	Notifier  Notifier
}

// Pipeline runs discovery batches one at a time
type Pipeline struct {
	deps     Deps
	criteria models.Criteria
	clock    utils.Clock
	logger   types.Logger

	mu sync.Mutex
}

// New creates a Pipeline
func New(deps Deps, criteria models.Criteria, clock utils.Clock, logger types.Logger) *Pipeline {
	if clock == nil {
		clock = utils.RealClock{}
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Pipeline{
		deps:     deps,
		criteria: criteria,
		clock:    clock,
		logger:   logger.WithField("component", "pipeline"),
	}
}

// Run executes one batch with a fresh run id
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	return p.RunWithID(ctx, utils.GenerateRunID(), "manual")
}

// RunWithID executes one batch.
//
// Only a discovery failure is returned as an error; every per-company and
// per-listing failure is contained and listed in the summary. Cancelling ctx
// stops the batch before the next company starts, never in the middle of one.
func (p *Pipeline) RunWithID(ctx context.Context, runID, trigger string) (*Summary, error) {
	if !p.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer p.mu.Unlock()

	summary := newSummary(runID, trigger, p.clock.Now())
	logger := p.logger.WithField("run_id", runID)

	companies, err := p.deps.Source.ListCandidateCompanies(ctx, p.criteria)
	if err != nil {
		logger.Error("Discovery failed", map[string]interface{}{
			"source": p.deps.Source.Name(),
			"error":  err.Error(),
		})
		return nil, fmt.Errorf("discover companies: %w", err)
	}
	summary.Companies = len(companies)

	logger.Info("Discovery run started", map[string]interface{}{
		"trigger":   trigger,
		"companies": len(companies),
		"source":    p.deps.Source.Name(),
	})

	p.deps.Dedup.Reset()

	for i := range companies {
		if ctx.Err() != nil {
			summary.Cancelled = true
			logger.Warn("Run cancelled between companies", map[string]interface{}{
				"processed": summary.Processed,
				"remaining": len(companies) - i,
			})
			break
		}
		p.processCompany(context.WithoutCancel(ctx), companies[i], summary, logger)
		summary.Processed++
	}

	summary.FinishedAt = p.clock.Now()
	p.finish(context.WithoutCancel(ctx), summary, logger)
	return summary, nil
}

func (p *Pipeline) processCompany(ctx context.Context, candidate models.Company, s *Summary, logger types.Logger) {
	logger = logger.WithField("company", candidate.Identifier())

	company, _, err := p.deps.Dedup.ResolveCompany(ctx, candidate)
	if err != nil {
		logger.Error("Failed to resolve company", map[string]interface{}{"error": err.Error()})
		s.fail(utils.KindOf(err), candidate.Identifier())
		return
	}

	page := p.deps.Fetcher.FetchCareerPage(ctx, company)
	if !page.OK() {
		err := fetchError(page)
		logger.Warn("Career page unavailable", map[string]interface{}{
			"status":       string(page.Status),
			"attempts":     page.Attempts,
			"quota_denied": page.QuotaDenied,
			"error":        err.Error(),
		})
		s.fail(utils.KindOf(err), fmt.Sprintf("%s: %s", company.Identifier(), page.Detail))
		return
	}
	s.Fetched++

	onDrop := func(err error) {
		s.Dropped++
		s.fail(utils.KindOf(err), fmt.Sprintf("%s: %s", company.Identifier(), err.Error()))
	}

	for listing := range p.deps.Extractor.Extract(strings.NewReader(page.Content), page.ResolvedURL, onDrop) {
		s.Listings++
		p.processListing(ctx, listing, company, s, logger)
	}

	logger.Info("Company processed", map[string]interface{}{
		"url":      page.ResolvedURL,
		"attempts": page.Attempts,
	})
}

func (p *Pipeline) processListing(ctx context.Context, listing models.RawListing, company *models.Company, s *Summary, logger types.Logger) {
	listing.URL = dedup.NormalizeJobURL(listing.URL)
	if listing.CompanyRef == "" {
		listing.CompanyRef = company.Name
	}
	defer p.deps.Dedup.MarkSeen(listing.URL)

	known, err := p.deps.Dedup.IsKnownJob(ctx, listing.URL)
	if err != nil {
		logger.Error("Failed to check posting", map[string]interface{}{
			"url":   listing.URL,
			"error": err.Error(),
		})
		s.fail(utils.KindOf(err), listing.URL)
		return
	}
	if known {
		s.Duplicates++
		p.touch(ctx, listing.URL, logger)
		return
	}

	result, err := p.deps.Scorer.Score(ctx, listing, *company, p.criteria)
	if err != nil {
		logger.Error("Failed to score listing", map[string]interface{}{
			"url":   listing.URL,
			"error": err.Error(),
		})
		s.fail(utils.KindOf(err), listing.URL)
		return
	}
	s.Scored++
	if result.Fallback {
		s.Fallbacks++
	}

	if !scoring.QualifiesAt(result, p.deps.Gateway.MinScore()) {
		s.BelowThreshold++
		logger.Debug("Listing below threshold", map[string]interface{}{
			"url":      listing.URL,
			"score":    result.Value,
			"strategy": result.ScoredBy,
		})
		return
	}

	job := models.NewJob(listing, company, result)
	outcome, err := p.deps.Gateway.UpsertJob(ctx, job)
	switch outcome {
	case models.OutcomeInserted:
		s.Inserted++
		s.NewJobs = append(s.NewJobs, *job)
	case models.OutcomeUpdated:
		s.Updated++
	case models.OutcomeSkipped:
		s.BelowThreshold++
	case models.OutcomeSpooled:
		s.Spooled++
	}
	if err != nil {
		s.fail(utils.KindOf(err), listing.URL)
		return
	}

	logger.Info("Job persisted", map[string]interface{}{
		"url":      job.URL,
		"title":    job.Title,
		"score":    job.Score,
		"strategy": result.ScoredBy,
		"outcome":  string(outcome),
	})
}

// touch refreshes last-seen on a stored posting. Postings only seen earlier in
// this run have no row yet.
func (p *Pipeline) touch(ctx context.Context, url string, logger types.Logger) {
	if p.deps.Jobs == nil {
		return
	}
	err := p.deps.Jobs.TouchJob(ctx, url, p.clock.Now())
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		logger.Warn("Failed to refresh known posting", map[string]interface{}{
			"url":   url,
			"error": err.Error(),
		})
	}
}

func (p *Pipeline) finish(ctx context.Context, s *Summary, logger types.Logger) {
	if p.deps.History != nil {
		if err := p.deps.History.RecordRun(ctx, s.Record()); err != nil {
			logger.Error("Failed to record run", map[string]interface{}{"error": err.Error()})
		}
	}

	if p.deps.Notifier != nil {
		digest := models.Digest{
			RunID:      s.RunID,
			FinishedAt: s.FinishedAt,
			Jobs:       s.NewJobs,
			Report:     s.Report(),
		}
		if err := p.deps.Notifier.Notify(ctx, digest); err != nil {
			logger.Error("Failed to send notification", map[string]interface{}{"error": err.Error()})
		}
	}

	logger.Info("Discovery run finished", map[string]interface{}{
		"duration":  utils.FormatDuration(s.Duration()),
		"processed": s.Processed,
		"inserted":  s.Inserted,
		"updated":   s.Updated,
		"spooled":   s.Spooled,
		"failures":  s.FailureCount(),
		"cancelled": s.Cancelled,
	})
}

func fetchError(page models.FetchResult) error {
	switch page.Status {
	case models.FetchStatusNotFound:
		return utils.NewNotFoundError(page.Detail)
	case models.FetchStatusRateLimited:
		return utils.NewRateLimitedError(page.Detail)
	case models.FetchStatusNetworkError:
		return utils.NewNetworkError(page.Detail, nil)
	case models.FetchStatusRejected:
		return utils.NewConfigurationError(page.Detail)
	default:
		return fmt.Errorf("unexpected fetch status %q: %s", page.Status, page.Detail)
	}
}
