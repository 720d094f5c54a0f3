// Package persistence writes qualifying jobs, retrying lock contention and
// spooling what still cannot be written.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jobscout/internal/config"
	"jobscout/internal/logging"
	"jobscout/internal/logging/types"
	"jobscout/internal/recovery"
	"jobscout/internal/store"
	"jobscout/pkg/models"
	"jobscout/pkg/utils"
)

// JobWriter is the repository surface the gateway needs
type JobWriter interface {
	UpsertJob(ctx context.Context, job *models.Job, now time.Time) (models.Outcome, error)
}

// Spool receives payloads that exhausted their retries; recovery.Queue implements it
type Spool interface {
	Append(job models.Job, reason string) (recovery.Entry, error)
}

// Backoff is the retry schedule for lock contention. Each delay precedes one retry.
type Backoff struct {
	Delays []time.Duration
	Sleep  func(ctx context.Context, d time.Duration) error
}

// DefaultBackoff retries three times after 1s, 2s and 4s
func DefaultBackoff() Backoff {
	return Backoff{
		Delays: []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
		Sleep:  utils.SleepContext,
	}
}

// ZeroDelayBackoff keeps the retry count of DefaultBackoff without waiting
func ZeroDelayBackoff() Backoff {
	return Backoff{
		Delays: make([]time.Duration, 3),
		Sleep:  func(context.Context, time.Duration) error { return nil },
	}
}

// Options configures a Gateway
type Options struct {
	MinScore int
	Backoff  Backoff
	Clock    utils.Clock
	Logger   types.Logger
}

// Gateway is the only writer of jobs
type Gateway struct {
	repo     JobWriter
	spool    Spool
	minScore int
	backoff  Backoff
	clock    utils.Clock
	logger   types.Logger
}

// New creates a gateway. The score threshold is never below the default of 70.
func New(repo JobWriter, spool Spool, opts Options) *Gateway {
	if opts.MinScore < config.MinPersistScore {
		opts.MinScore = config.MinPersistScore
	}
	if opts.Backoff.Delays == nil {
		opts.Backoff = DefaultBackoff()
	}
	if opts.Backoff.Sleep == nil {
		opts.Backoff.Sleep = utils.SleepContext
	}
	if opts.Clock == nil {
		opts.Clock = utils.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetGlobalLogger()
	}

	return &Gateway{
		repo:     repo,
		spool:    spool,
		minScore: opts.MinScore,
		backoff:  opts.Backoff,
		clock:    opts.Clock,
		logger:   opts.Logger.WithField("component", "persistence"),
	}
}

// MinScore returns the effective persistence threshold
func (g *Gateway) MinScore() int {
	return g.minScore
}

// UpsertJob stores a job keyed by its posting URL.
//
// Jobs under the threshold are skipped without touching storage. A new URL is
// inserted with status new; a known URL only has its discovery metadata
// refreshed. When every retry fails the job is spooled once and a
// persistence_failure error is returned with OutcomeSpooled.
func (g *Gateway) UpsertJob(ctx context.Context, job *models.Job) (models.Outcome, error) {
	if job.Score < g.minScore {
		return models.OutcomeSkipped, nil
	}

	outcome, err := g.write(ctx, job)
	if err == nil {
		return outcome, nil
	}

	reason := err.Error()
	entry, spoolErr := g.spool.Append(*job, reason)
	if spoolErr != nil {
		g.logger.Error("Failed to spool job after persistence failure", map[string]interface{}{
			"url":         job.URL,
			"error":       reason,
			"spool_error": spoolErr.Error(),
		})
		return "", utils.NewPersistenceFailureError(
			fmt.Sprintf("%s: not written and not spooled", job.URL),
			errors.Join(err, spoolErr),
		)
	}

	return models.OutcomeSpooled, utils.NewPersistenceFailureError(
		fmt.Sprintf("%s: spooled as %s", job.URL, entry.ID),
		err,
	)
}

// Restore replays a spooled job through the same retry schedule without spooling it again
func (g *Gateway) Restore(ctx context.Context, job *models.Job) (models.Outcome, error) {
	if job.Score < g.minScore {
		return models.OutcomeSkipped, nil
	}
	return g.write(ctx, job)
}

// write runs the upsert, retrying only on store.ErrLocked
func (g *Gateway) write(ctx context.Context, job *models.Job) (models.Outcome, error) {
	var lastErr error

	for attempt := 0; attempt <= len(g.backoff.Delays); attempt++ {
		if attempt > 0 {
			delay := g.backoff.Delays[attempt-1]
			g.logger.Info("Database locked, retrying", map[string]interface{}{
				"url":     job.URL,
				"attempt": attempt,
				"delay":   delay.String(),
			})
			if err := g.backoff.Sleep(ctx, delay); err != nil {
				return "", fmt.Errorf("upsert %s: %w (last error: %v)", job.URL, err, lastErr)
			}
		}

		outcome, err := g.repo.UpsertJob(ctx, job, g.clock.Now())
		if err == nil {
			g.logger.Debug("Job persisted", map[string]interface{}{
				"url":     job.URL,
				"outcome": string(outcome),
				"score":   job.Score,
			})
			return outcome, nil
		}

		lastErr = err
		if !errors.Is(err, store.ErrLocked) {
			return "", fmt.Errorf("upsert %s: %w", job.URL, err)
		}
	}

	return "", fmt.Errorf("upsert %s: still locked after %d retries: %w", job.URL, len(g.backoff.Delays), lastErr)
}

// NewFromConfig builds a gateway with the configured threshold and retry delays
func NewFromConfig(cfg *config.Config, repo JobWriter, spool Spool, logger types.Logger) *Gateway {
	backoff := DefaultBackoff()
	if len(cfg.Persistence.RetryDelays) > 0 {
		backoff.Delays = cfg.Persistence.RetryDelays
	}
	return New(repo, spool, Options{
		MinScore: cfg.Matching.MinScore,
		Backoff:  backoff,
		Logger:   logger,
	})
}
