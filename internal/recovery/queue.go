// Package recovery keeps jobs that could not be written in an append-only
// JSON Lines spool until a manual recover run replays them.
package recovery

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"jobscout/internal/logging"
	"jobscout/internal/logging/types"
	"jobscout/pkg/models"
)

// Entry is one spooled job
type Entry struct {
	ID        string     `json:"id"`
	Job       models.Job `json:"job"`
	Reason    string     `json:"reason"`
	SpooledAt time.Time  `json:"spooled_at"`
}

// Queue is a durable file-backed spool
type Queue struct {
	path   string
	logger types.Logger
	mu     sync.Mutex
}

// NewQueue creates a queue at path. The file is created on first append.
func NewQueue(path string, logger types.Logger) *Queue {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Queue{
		path:   path,
		logger: logger.WithField("component", "recovery"),
	}
}

// Path returns the spool file location
func (q *Queue) Path() string {
	return q.path
}

// CorruptPath returns the file that undecodable spool lines are moved to
func (q *Queue) CorruptPath() string {
	return q.path + ".corrupt"
}

// Append writes one entry and syncs it to disk before returning
func (q *Queue) Append(job models.Job, reason string) (Entry, error) {
	entry := Entry{
		ID:        uuid.New().String(),
		Job:       job,
		Reason:    reason,
		SpooledAt: time.Now().UTC(),
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("encode recovery entry: %w", err)
	}
	line = append(line, '\n')

	q.mu.Lock()
	defer q.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(q.path), 0o755); err != nil {
		return Entry{}, fmt.Errorf("create recovery dir: %w", err)
	}
	f, err := os.OpenFile(q.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return Entry{}, fmt.Errorf("open recovery spool: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return Entry{}, fmt.Errorf("write recovery spool: %w", err)
	}
	if err := f.Sync(); err != nil {
		return Entry{}, fmt.Errorf("sync recovery spool: %w", err)
	}

	q.logger.Warn("Job spooled for recovery", map[string]interface{}{
		"entry_id": entry.ID,
		"url":      job.URL,
		"reason":   reason,
	})
	return entry, nil
}

// ReadAll returns every entry in spool order. A missing file is an empty spool.
// Lines that fail to decode are skipped and logged; Drain moves them aside.
func (q *Queue) ReadAll() ([]Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries, _, err := q.readLocked()
	return entries, err
}

// readLocked returns the decoded entries and the raw lines that did not decode
func (q *Queue) readLocked() ([]Entry, [][]byte, error) {
	f, err := os.Open(q.path)
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open recovery spool: %w", err)
	}
	defer f.Close()

	var (
		entries []Entry
		corrupt [][]byte
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			q.logger.Error("Skipping corrupt recovery entry", map[string]interface{}{
				"line":  lineNo,
				"error": err.Error(),
			})
			corrupt = append(corrupt, append([]byte(nil), scanner.Bytes()...))
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read recovery spool: %w", err)
	}
	return entries, corrupt, nil
}

// Len returns the number of readable entries
func (q *Queue) Len() (int, error) {
	entries, err := q.ReadAll()
	return len(entries), err
}

// DrainResult summarises a Drain call
type DrainResult struct {
	Restored  int `json:"restored"`
	Remaining int `json:"remaining"`
}

// Drain hands each entry to restore. Entries restore accepts are removed;
// the rest stay in the spool in their original order. Drain stops early when
// ctx is cancelled, keeping every unprocessed entry. Lines that do not decode
// are appended to CorruptPath before anything is restored.
func (q *Queue) Drain(ctx context.Context, restore func(ctx context.Context, e Entry) error) (DrainResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, corrupt, err := q.readLocked()
	if err != nil {
		return DrainResult{}, err
	}
	if len(corrupt) > 0 {
		if err := q.quarantineLocked(corrupt); err != nil {
			return DrainResult{Remaining: len(entries)}, err
		}
	}
	if len(entries) == 0 {
		if len(corrupt) > 0 {
			return DrainResult{}, q.rewriteLocked(nil)
		}
		return DrainResult{}, nil
	}

	var (
		kept     []Entry
		restored int
	)
	for i, e := range entries {
		if ctx.Err() != nil {
			kept = append(kept, entries[i:]...)
			break
		}
		if err := restore(ctx, e); err != nil {
			q.logger.Warn("Recovery entry not restored", map[string]interface{}{
				"entry_id": e.ID,
				"url":      e.Job.URL,
				"error":    err.Error(),
			})
			kept = append(kept, e)
			continue
		}
		restored++
	}

	if err := q.rewriteLocked(kept); err != nil {
		return DrainResult{Restored: restored, Remaining: len(kept)}, err
	}

	q.logger.Info("Recovery spool drained", map[string]interface{}{
		"restored":  restored,
		"remaining": len(kept),
	})
	return DrainResult{Restored: restored, Remaining: len(kept)}, nil
}

// quarantineLocked appends raw lines to the corrupt file and syncs it
func (q *Queue) quarantineLocked(lines [][]byte) error {
	f, err := os.OpenFile(q.CorruptPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open corrupt recovery file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, line := range lines {
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write corrupt recovery file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync corrupt recovery file: %w", err)
	}

	q.logger.Warn("Moved corrupt recovery entries aside", map[string]interface{}{
		"count": len(lines),
		"file":  q.CorruptPath(),
	})
	return nil
}

// rewriteLocked atomically replaces the spool with entries
func (q *Queue) rewriteLocked(entries []Entry) error {
	if len(entries) == 0 {
		if err := os.Remove(q.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove recovery spool: %w", err)
		}
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(q.path), ".recovery-*.jsonl")
	if err != nil {
		return fmt.Errorf("create recovery temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			tmp.Close()
			return fmt.Errorf("encode recovery entry: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write recovery temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync recovery temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close recovery temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), q.path); err != nil {
		return fmt.Errorf("replace recovery spool: %w", err)
	}
	return nil
}
