package adapters

import (
	"sync"

	"jobscout/internal/logging/types"
)

// MemoryAdapter keeps entries in memory; used by tests to assert on log output
type MemoryAdapter struct {
	name    string
	mu      sync.Mutex
	entries []types.LogEntry
}

func NewMemoryAdapter(name string) *MemoryAdapter {
	return &MemoryAdapter{name: name}
}

func (a *MemoryAdapter) Write(entry *types.LogEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, *entry)
	return nil
}

// Entries returns a copy of everything written so far
func (a *MemoryAdapter) Entries() []types.LogEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]types.LogEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Messages returns the messages written at or above level
func (a *MemoryAdapter) Messages(level types.LogLevel) []string {
	var out []string
	for _, e := range a.Entries() {
		if e.Level.Enabled(level) {
			out = append(out, e.Message)
		}
	}
	return out
}

func (a *MemoryAdapter) Close() error { return nil }

func (a *MemoryAdapter) Health() error { return nil }

func (a *MemoryAdapter) Name() string { return a.name }
