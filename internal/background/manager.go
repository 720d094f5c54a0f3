package background

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"jobscout/internal/config"
	"jobscout/internal/logging"
	"jobscout/internal/logging/types"
	"jobscout/internal/pipeline"
	"jobscout/pkg/utils"
)

// Run manager defaults
const (
	DefaultMaxAge          = 24 * time.Hour
	DefaultCleanupInterval = time.Hour
	DefaultRunTimeout      = 2 * time.Hour

	// One run executes while at most one more waits
	queueSize = 1
)

// Runner executes one discovery batch; *pipeline.Pipeline implements it
type Runner interface {
	RunWithID(ctx context.Context, runID, trigger string) (*pipeline.Summary, error)
}

// RunManager defines the interface for managing background runs
type RunManager interface {
	// Start starts the run worker
	Start(ctx context.Context) error

	// Stop stops the run manager gracefully
	Stop(ctx context.Context) error

	// Submit queues a discovery run and returns its id
	Submit(ctx context.Context, trigger string) (string, error)

	// GetRun retrieves a run by id
	GetRun(ctx context.Context, runID string) (*RunResult, error)

	// ListRuns lists tracked runs, newest first
	ListRuns(ctx context.Context) ([]*RunResult, error)

	// IsHealthy reports whether the manager accepts runs
	IsHealthy() bool
}

// Options configures a Manager
type Options struct {
	MaxAge          time.Duration
	CleanupInterval time.Duration
	RunTimeout      time.Duration
	Logger          types.Logger
	// Output receives one JSON line per finished run; stdout when nil
	Output io.Writer
}

// OptionsFromConfig reads the runs section
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxAge:          cfg.Runs.MaxAge,
		CleanupInterval: cfg.Runs.CleanupInterval,
		RunTimeout:      cfg.Runs.Timeout,
	}
}

// Manager implements RunManager with a single worker, so runs never overlap
type Manager struct {
	runner    Runner
	store     RunStore
	logger    *RunCompletionLogger
	appLogger types.Logger
	opts      Options

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.RWMutex
	submitMu sync.Mutex
	running  bool
	queue    chan *RunResult
}

// NewManager creates a run manager
func NewManager(runner Runner, store RunStore, opts Options) *Manager {
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = DefaultRunTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetGlobalLogger()
	}
	if store == nil {
		store = NewInMemoryRunStore()
	}

	return &Manager{
		runner:    runner,
		store:     store,
		logger:    NewRunCompletionLogger(opts.Logger, opts.Output),
		appLogger: opts.Logger.WithField("component", "runs"),
		opts:      opts,
		queue:     make(chan *RunResult, queueSize),
	}
}

// Start starts the worker and the cleanup routine
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("run manager already running")
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.running = true

	m.wg.Add(2)
	go m.worker()
	go m.cleanupRoutine()

	m.appLogger.Info("Run manager started", map[string]interface{}{
		"max_age":     m.opts.MaxAge.String(),
		"run_timeout": m.opts.RunTimeout.String(),
	})
	return nil
}

// Stop cancels the active run between companies and waits for the worker
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.cancel()
	m.mu.Unlock()

	m.appLogger.Info("Stopping run manager...", map[string]interface{}{})

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.appLogger.Info("Run manager stopped gracefully", map[string]interface{}{})
	case <-ctx.Done():
		m.appLogger.Warn("Run manager shutdown timed out", map[string]interface{}{})
	}
	return nil
}

// Submit records an accepted run and queues it. Only one run may wait behind
// the active one.
func (m *Manager) Submit(ctx context.Context, trigger string) (string, error) {
	if !m.IsHealthy() {
		return "", ErrNotRunning
	}

	m.submitMu.Lock()
	defer m.submitMu.Unlock()

	if len(m.queue) >= cap(m.queue) {
		return "", ErrQueueFull
	}

	result := &RunResult{
		RunID:     utils.GenerateRunID(),
		Trigger:   trigger,
		Status:    RunStatusAccepted,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.Store(ctx, result); err != nil {
		return "", fmt.Errorf("failed to store run: %w", err)
	}

	m.logger.LogRunAccepted(result)

	// only Submit sends, under submitMu, so this never blocks
	runID := result.RunID
	m.queue <- result
	return runID, nil
}

// GetRun retrieves a run by id
func (m *Manager) GetRun(ctx context.Context, runID string) (*RunResult, error) {
	return m.store.Get(ctx, runID)
}

// ListRuns lists tracked runs
func (m *Manager) ListRuns(ctx context.Context) ([]*RunResult, error) {
	return m.store.List(ctx)
}

// IsHealthy checks if the manager is accepting runs
func (m *Manager) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running && m.ctx.Err() == nil
}

func (m *Manager) worker() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case result := <-m.queue:
			m.process(result)
		}
	}
}

func (m *Manager) process(result *RunResult) {
	started := time.Now().UTC()
	result.Status = RunStatusProcessing
	result.StartedAt = &started
	m.update(result)
	m.logger.LogRunStart(result)

	ctx, cancel := context.WithTimeout(m.ctx, m.opts.RunTimeout)
	summary, err := m.runner.RunWithID(ctx, result.RunID, result.Trigger)
	cancel()

	completed := time.Now().UTC()
	elapsed := completed.Sub(started)
	result.CompletedAt = &completed
	result.ProcessingTime = &elapsed

	if err != nil {
		result.Status = RunStatusFailure
		result.Error = err.Error()
	} else {
		result.Status = RunStatusSuccess
		result.Summary = summary
		result.Report = summary.Report()
	}

	m.update(result)
	m.logger.LogRunCompletion(result)
}

func (m *Manager) update(result *RunResult) {
	// detached so a shutdown still records the final state
	ctx := context.WithoutCancel(m.ctx)
	if err := m.store.Update(ctx, result); err != nil {
		m.appLogger.Error("Failed to update run result", map[string]interface{}{
			"run_id": result.RunID,
			"status": string(result.Status),
			"error":  err.Error(),
		})
	}
}

func (m *Manager) cleanupRoutine() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if err := m.store.Cleanup(m.ctx, m.opts.MaxAge); err != nil {
				m.appLogger.Error("Failed to cleanup old run results", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}
}
