// Package quota gates scrape calls against a per-period budget kept below the
// provider's hard limit.
package quota

import (
	"context"
	"fmt"
	"math"
	"time"

	"jobscout/internal/logging"
	"jobscout/pkg/models"
	"jobscout/pkg/utils"
)

// Period selects the wall-clock window the counter resets on
type Period string

const (
	PeriodMonthly Period = "monthly"
	PeriodDaily   Period = "daily"
)

// Key returns the identifier of the window containing t
func (p Period) Key(t time.Time) string {
	t = t.UTC()
	if p == PeriodDaily {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01")
}

// Counter stores usage for the current period.
//
// Reserve must atomically replace the stored period with the given one (resetting
// usage to zero) when they differ, then add count only if the result stays within
// ceiling. A denied reservation leaves usage untouched.
type Counter interface {
	Reserve(ctx context.Context, period string, count, ceiling int) (granted bool, used int, err error)
	Usage(ctx context.Context, period string) (int, error)
}

// Usage is a point-in-time view of the budget
type Usage struct {
	Period  string `json:"period"`
	Used    int    `json:"used"`
	Ceiling int    `json:"ceiling"`
}

// Remaining returns how many reservations are left in the period
func (u Usage) Remaining() int {
	if u.Ceiling <= u.Used {
		return 0
	}
	return u.Ceiling - u.Used
}

// Options configures a Tracker
type Options struct {
	ProviderLimit int
	SafetyMargin  float64
	Period        Period
	Clock         utils.Clock
	Logger        logging.Logger
}

// Tracker owns the scrape budget for a process
type Tracker struct {
	counter   Counter
	ceiling   int
	unlimited bool
	period    Period
	clock     utils.Clock
	logger    logging.Logger
}

// Ceiling applies the safety margin to a provider limit, rounding down
func Ceiling(limit int, margin float64) int {
	return int(math.Floor(float64(limit)*margin + 1e-9))
}

// NewTracker creates a tracker. A ProviderLimit of zero disables gating but still counts usage.
func NewTracker(counter Counter, opts Options) *Tracker {
	if opts.SafetyMargin <= 0 || opts.SafetyMargin > 1 {
		opts.SafetyMargin = 0.9
	}
	if opts.Period == "" {
		opts.Period = PeriodMonthly
	}
	if opts.Clock == nil {
		opts.Clock = utils.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetGlobalLogger()
	}

	return &Tracker{
		counter:   counter,
		ceiling:   Ceiling(opts.ProviderLimit, opts.SafetyMargin),
		unlimited: opts.ProviderLimit == 0,
		period:    opts.Period,
		clock:     opts.Clock,
		logger:    opts.Logger.WithField("component", "quota"),
	}
}

// Reserve grants count units of budget, or returns false without mutating anything
func (t *Tracker) Reserve(ctx context.Context, count int) (bool, error) {
	if count <= 0 {
		return true, nil
	}

	ceiling := t.ceiling
	if t.unlimited {
		ceiling = math.MaxInt32
	}

	key := t.period.Key(t.clock.Now())
	granted, used, err := t.counter.Reserve(ctx, key, count, ceiling)
	if err != nil {
		return false, fmt.Errorf("reserve quota for %s: %w", key, err)
	}

	if !granted {
		t.logger.Warn("Scrape quota exhausted", map[string]interface{}{
			"period":  key,
			"used":    used,
			"ceiling": t.ceiling,
		})
		return false, nil
	}

	t.logger.Debug("Scrape quota reserved", map[string]interface{}{
		"period": key,
		"used":   used,
		"count":  count,
	})
	return true, nil
}

// Usage reports consumption for the current period
func (t *Tracker) Usage(ctx context.Context) (Usage, error) {
	key := t.period.Key(t.clock.Now())
	used, err := t.counter.Usage(ctx, key)
	if err != nil {
		return Usage{}, fmt.Errorf("read quota for %s: %w", key, err)
	}

	ceiling := t.ceiling
	if t.unlimited {
		ceiling = 0
	}
	return Usage{Period: key, Used: used, Ceiling: ceiling}, nil
}

// FillStats copies the current usage into stats
func (t *Tracker) FillStats(ctx context.Context, stats *models.Stats) error {
	usage, err := t.Usage(ctx)
	if err != nil {
		return err
	}
	stats.QuotaPeriod = usage.Period
	stats.QuotaUsed = usage.Used
	stats.QuotaCeiling = usage.Ceiling
	return nil
}
