// Package scheduler triggers discovery runs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"jobscout/internal/background"
	"jobscout/internal/logging"
	"jobscout/internal/logging/types"
)

// TriggerSchedule tags runs started by the scheduler
const TriggerSchedule = "schedule"

// Submitter queues a discovery run; background.Manager implements it
type Submitter interface {
	Submit(ctx context.Context, trigger string) (string, error)
}

// Scheduler wraps robfig/cron and submits one run per tick
type Scheduler struct {
	cron       *cron.Cron
	submitter  Submitter
	spec       string
	runOnStart bool
	logger     types.Logger
	entry      cron.EntryID
}

// New creates a Scheduler for spec, e.g. "@every 24h" or "0 7 * * *"
func New(submitter Submitter, spec string, runOnStart bool, logger types.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	logger = logger.WithField("component", "scheduler")
	adapter := cronLogger{logger: logger}
	return &Scheduler{
		cron:       cron.New(cron.WithLogger(adapter), cron.WithChain(cron.Recover(adapter))),
		submitter:  submitter,
		spec:       spec,
		runOnStart: runOnStart,
		logger:     logger,
	}, nil
}

// Start registers the job and starts the cron loop. With runOnStart a run is
// also submitted immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.spec, func() {
		s.Trigger(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.entry = id

	s.cron.Start()
	s.logger.Info("Scheduler started", map[string]interface{}{
		"spec":         s.spec,
		"run_on_start": s.runOnStart,
		"next_run":     s.cron.Entry(id).Next,
	})

	if s.runOnStart {
		s.Trigger(ctx)
	}
	return nil
}

// Stop stops the cron loop and waits for a running tick to return
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped", map[string]interface{}{})
}

// Trigger submits one run. A tick that finds a run already queued is skipped.
func (s *Scheduler) Trigger(ctx context.Context) {
	runID, err := s.submitter.Submit(ctx, TriggerSchedule)
	switch {
	case errors.Is(err, background.ErrQueueFull):
		s.logger.Warn("Previous run still pending, skipping tick", map[string]interface{}{})
	case err != nil:
		s.logger.Error("Failed to submit scheduled run", map[string]interface{}{
			"error": err.Error(),
		})
	default:
		s.logger.Info("Scheduled run submitted", map[string]interface{}{
			"run_id": runID,
		})
	}
}

// cronLogger adapts the application logger to cron.Logger
type cronLogger struct {
	logger types.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, pairs(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := pairs(keysAndValues)
	fields["error"] = err.Error()
	l.logger.Error("cron: "+msg, fields)
}

func pairs(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
