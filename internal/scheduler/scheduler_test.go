package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscout/internal/background"
	"jobscout/internal/logging"
)

type recordingSubmitter struct {
	mu       sync.Mutex
	triggers []string
	err      error
}

func (r *recordingSubmitter) Submit(_ context.Context, trigger string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers = append(r.triggers, trigger)
	if r.err != nil {
		return "", r.err
	}
	return "run_1", nil
}

func (r *recordingSubmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.triggers)
}

func TestInvalidSpecIsRejected(t *testing.T) {
	_, err := New(&recordingSubmitter{}, "every day please", false, logging.NewNopLogger())
	assert.Error(t, err)
}

func TestRunOnStartSubmitsImmediately(t *testing.T) {
	sub := &recordingSubmitter{}
	s, err := New(sub, "@every 24h", true, logging.NewNopLogger())
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Equal(t, 1, sub.count())
	assert.Equal(t, []string{TriggerSchedule}, sub.triggers)
}

func TestWithoutRunOnStartNothingIsSubmitted(t *testing.T) {
	sub := &recordingSubmitter{}
	s, err := New(sub, "0 7 * * *", false, logging.NewNopLogger())
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	assert.Zero(t, sub.count())
}

func TestTriggerToleratesSubmitErrors(t *testing.T) {
	for _, err := range []error{background.ErrQueueFull, errors.New("redis down")} {
		sub := &recordingSubmitter{err: err}
		s, newErr := New(sub, "@every 1h", false, logging.NewNopLogger())
		require.NoError(t, newErr)

		assert.NotPanics(t, func() { s.Trigger(context.Background()) })
		assert.Equal(t, 1, sub.count())
	}
}

func TestPairs(t *testing.T) {
	got := pairs([]interface{}{"entry", 1, "now", "later", "dangling"})
	assert.Equal(t, map[string]interface{}{"entry": 1, "now": "later"}, got)
}
