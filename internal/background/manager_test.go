package background

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscout/internal/logging"
	"jobscout/internal/pipeline"
)

// gatedRunner blocks each run until released
type gatedRunner struct {
	mu      sync.Mutex
	release chan struct{}
	started chan string
	err     error
	ids     []string
}

func newGatedRunner() *gatedRunner {
	return &gatedRunner{release: make(chan struct{}), started: make(chan string, 4)}
}

func (r *gatedRunner) RunWithID(ctx context.Context, runID, trigger string) (*pipeline.Summary, error) {
	r.mu.Lock()
	r.ids = append(r.ids, runID)
	r.mu.Unlock()
	r.started <- runID

	select {
	case <-r.release:
	case <-ctx.Done():
	}
	if r.err != nil {
		return nil, r.err
	}
	return &pipeline.Summary{RunID: runID, Trigger: trigger, Inserted: 2}, nil
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startManager(t *testing.T, runner Runner) (*Manager, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	m := NewManager(runner, nil, Options{Logger: logging.NewNopLogger(), Output: out})
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		m.Stop(ctx)
	})
	return m, out
}

func waitForStatus(t *testing.T, m *Manager, id string, want RunStatus) *RunResult {
	t.Helper()
	var got *RunResult
	require.Eventually(t, func() bool {
		r, err := m.GetRun(context.Background(), id)
		if err != nil {
			return false
		}
		got = r
		return r.Status == want
	}, 2*time.Second, 10*time.Millisecond)
	return got
}

func TestSubmitRunsToCompletion(t *testing.T) {
	runner := newGatedRunner()
	m, out := startManager(t, runner)

	id, err := m.Submit(context.Background(), "api")
	require.NoError(t, err)
	assert.Equal(t, id, <-runner.started)

	waitForStatus(t, m, id, RunStatusProcessing)
	close(runner.release)

	result := waitForStatus(t, m, id, RunStatusSuccess)
	require.NotNil(t, result.Summary)
	assert.Equal(t, 2, result.Summary.Inserted)
	assert.Equal(t, "api", result.Trigger)
	assert.NotNil(t, result.CompletedAt)
	assert.NotEmpty(t, result.Report)

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte(`"runId":"`+id+`"`))
	}, time.Second, 10*time.Millisecond)
}

func TestSubmitRejectsWhenQueueFull(t *testing.T) {
	runner := newGatedRunner()
	m, _ := startManager(t, runner)

	first, err := m.Submit(context.Background(), "api")
	require.NoError(t, err)
	<-runner.started

	_, err = m.Submit(context.Background(), "api")
	require.NoError(t, err, "one run may wait")

	_, err = m.Submit(context.Background(), "api")
	assert.ErrorIs(t, err, ErrQueueFull)

	close(runner.release)
	waitForStatus(t, m, first, RunStatusSuccess)
}

func TestFailedRunIsRecorded(t *testing.T) {
	runner := newGatedRunner()
	runner.err = errors.New("no discovery source configured")
	close(runner.release)
	m, _ := startManager(t, runner)

	id, err := m.Submit(context.Background(), "schedule")
	require.NoError(t, err)

	result := waitForStatus(t, m, id, RunStatusFailure)
	assert.Equal(t, "no discovery source configured", result.Error)
	assert.Nil(t, result.Summary)
}

func TestSubmitBeforeStart(t *testing.T) {
	m := NewManager(newGatedRunner(), nil, Options{Logger: logging.NewNopLogger()})
	_, err := m.Submit(context.Background(), "api")
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.False(t, m.IsHealthy())
}

func TestInMemoryStoreCleanup(t *testing.T) {
	s := NewInMemoryRunStore()
	ctx := context.Background()

	old := &RunResult{RunID: "old", Status: RunStatusSuccess, CreatedAt: time.Now().Add(-48 * time.Hour)}
	stuck := &RunResult{RunID: "stuck", Status: RunStatusProcessing, CreatedAt: time.Now().Add(-48 * time.Hour)}
	fresh := &RunResult{RunID: "fresh", Status: RunStatusSuccess, CreatedAt: time.Now()}
	for _, r := range []*RunResult{old, stuck, fresh} {
		require.NoError(t, s.Store(ctx, r))
	}

	require.NoError(t, s.Cleanup(ctx, 24*time.Hour))

	_, err := s.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrRunNotFound)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "fresh", list[0].RunID)

	assert.ErrorIs(t, s.Update(ctx, &RunResult{RunID: "missing"}), ErrRunNotFound)
}
