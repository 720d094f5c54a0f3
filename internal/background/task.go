package background

import (
	"context"
	"sort"
	"sync"
	"time"

	"jobscout/internal/pipeline"
)

// RunStatus represents the status of a background run
type RunStatus string

const (
	RunStatusAccepted   RunStatus = "ACCEPTED"
	RunStatusProcessing RunStatus = "PROCESSING"
	RunStatusSuccess    RunStatus = "SUCCESS"
	RunStatusFailure    RunStatus = "FAILURE"
)

// RunResult is the tracked state of one discovery run
type RunResult struct {
	RunID          string            `json:"runId"`
	Trigger        string            `json:"trigger"`
	Status         RunStatus         `json:"status"`
	Summary        *pipeline.Summary `json:"summary,omitempty"`
	Report         string            `json:"report,omitempty"`
	Error          string            `json:"error,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	StartedAt      *time.Time        `json:"startedAt,omitempty"`
	CompletedAt    *time.Time        `json:"completedAt,omitempty"`
	ProcessingTime *time.Duration    `json:"processingTime,omitempty"`
}

// Finished reports whether the run reached a terminal status
func (r *RunResult) Finished() bool {
	return r.Status == RunStatusSuccess || r.Status == RunStatusFailure
}

// RunStore defines the interface for storing and retrieving run results
type RunStore interface {
	// Store stores a run result
	Store(ctx context.Context, result *RunResult) error

	// Get retrieves a run result by id
	Get(ctx context.Context, runID string) (*RunResult, error)

	// Update replaces an existing run result
	Update(ctx context.Context, result *RunResult) error

	// Cleanup removes results older than maxAge
	Cleanup(ctx context.Context, maxAge time.Duration) error

	// List returns results newest first
	List(ctx context.Context) ([]*RunResult, error)
}

// InMemoryRunStore implements RunStore using in-memory storage
type InMemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]*RunResult
}

// NewInMemoryRunStore creates a new in-memory run store
func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{
		runs: make(map[string]*RunResult),
	}
}

// Store stores a run result
func (s *InMemoryRunStore) Store(_ context.Context, result *RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *result
	s.runs[result.RunID] = &copied
	return nil
}

// Get retrieves a run result by id
func (s *InMemoryRunStore) Get(_ context.Context, runID string) (*RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, exists := s.runs[runID]
	if !exists {
		return nil, ErrRunNotFound
	}

	copied := *result
	return &copied, nil
}

// Update updates a run result
func (s *InMemoryRunStore) Update(_ context.Context, result *RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[result.RunID]; !exists {
		return ErrRunNotFound
	}

	copied := *result
	s.runs[result.RunID] = &copied
	return nil
}

// Cleanup removes finished results created before the cutoff
func (s *InMemoryRunStore) Cleanup(_ context.Context, maxAge time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for id, result := range s.runs {
		if result.Finished() && result.CreatedAt.Before(cutoff) {
			delete(s.runs, id)
		}
	}
	return nil
}

// List returns all run results, newest first
func (s *InMemoryRunStore) List(_ context.Context) ([]*RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*RunResult, 0, len(s.runs))
	for _, result := range s.runs {
		copied := *result
		results = append(results, &copied)
	}
	sortNewestFirst(results)
	return results, nil
}

func sortNewestFirst(results []*RunResult) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
}

// Common errors
var (
	ErrRunNotFound = NewRunError("run not found", "RUN_NOT_FOUND")
	ErrQueueFull   = NewRunError("a run is already queued", "RUN_QUEUE_FULL")
	ErrNotRunning  = NewRunError("run manager is not running", "RUN_MANAGER_STOPPED")
)

// RunError represents a background run error
type RunError struct {
	Message string
	Code    string
}

func NewRunError(message, code string) *RunError {
	return &RunError{
		Message: message,
		Code:    code,
	}
}

func (e *RunError) Error() string {
	return e.Message
}
