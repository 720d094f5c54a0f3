package recovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscout/internal/logging"
	"jobscout/pkg/models"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	return NewQueue(filepath.Join(t.TempDir(), "spool", "recovery.jsonl"), logging.NewNopLogger())
}

func job(url string) models.Job {
	return models.Job{Title: "Product Manager", URL: url, Score: 80, RoleType: models.RoleTypePM}
}

func TestEmptySpool(t *testing.T) {
	q := newTestQueue(t)
	entries, err := q.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, entries)

	res, err := q.Drain(context.Background(), func(context.Context, Entry) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, DrainResult{}, res)
}

func TestAppendAndReadAll(t *testing.T) {
	q := newTestQueue(t)

	first, err := q.Append(job("https://a.io/1"), "locked")
	require.NoError(t, err)
	_, err = q.Append(job("https://a.io/2"), "locked")
	require.NoError(t, err)

	entries, err := q.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first.ID, entries[0].ID)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "https://a.io/2", entries[1].Job.URL)
	assert.Equal(t, "locked", entries[1].Reason)
}

func TestCorruptLinesAreSkipped(t *testing.T) {
	q := newTestQueue(t)
	_, err := q.Append(job("https://a.io/1"), "locked")
	require.NoError(t, err)

	f, err := os.OpenFile(q.Path(), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	n, err := q.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDrainMovesCorruptLinesAside(t *testing.T) {
	q := newTestQueue(t)
	_, err := q.Append(job("https://a.io/1"), "locked")
	require.NoError(t, err)
	_, err = q.Append(job("https://a.io/2"), "locked")
	require.NoError(t, err)

	f, err := os.OpenFile(q.Path(), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	res, err := q.Drain(context.Background(), func(_ context.Context, e Entry) error {
		if e.Job.URL == "https://a.io/2" {
			return errors.New("still locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Restored: 1, Remaining: 1}, res)

	raw, err := os.ReadFile(q.CorruptPath())
	require.NoError(t, err)
	assert.Equal(t, "{not json\n", string(raw))

	spool, err := os.ReadFile(q.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(spool), "{not json")
	assert.Contains(t, string(spool), "https://a.io/2")
}

func TestDrainOfOnlyCorruptLinesEmptiesSpool(t *testing.T) {
	q := newTestQueue(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(q.Path()), 0o755))
	require.NoError(t, os.WriteFile(q.Path(), []byte("garbage\n"), 0o644))

	res, err := q.Drain(context.Background(), func(context.Context, Entry) error { return nil })
	require.NoError(t, err)
	assert.Zero(t, res.Restored)
	assert.NoFileExists(t, q.Path())

	raw, err := os.ReadFile(q.CorruptPath())
	require.NoError(t, err)
	assert.Equal(t, "garbage\n", string(raw))
}

func TestDrainKeepsFailures(t *testing.T) {
	q := newTestQueue(t)
	for _, u := range []string{"https://a.io/1", "https://a.io/2", "https://a.io/3"} {
		_, err := q.Append(job(u), "locked")
		require.NoError(t, err)
	}

	var seen []string
	res, err := q.Drain(context.Background(), func(_ context.Context, e Entry) error {
		seen = append(seen, e.Job.URL)
		if e.Job.URL == "https://a.io/2" {
			return errors.New("still locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Restored: 2, Remaining: 1}, res)
	assert.Len(t, seen, 3)

	entries, err := q.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "https://a.io/2", entries[0].Job.URL)

	res, err = q.Drain(context.Background(), func(context.Context, Entry) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, res.Restored)
	_, statErr := os.Stat(q.Path())
	assert.True(t, os.IsNotExist(statErr), "fully drained spool is removed")
}

func TestDrainStopsOnCancel(t *testing.T) {
	q := newTestQueue(t)
	for _, u := range []string{"https://a.io/1", "https://a.io/2"} {
		_, err := q.Append(job(u), "locked")
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	res, err := q.Drain(ctx, func(context.Context, Entry) error {
		cancel()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Restored: 1, Remaining: 1}, res)
}
