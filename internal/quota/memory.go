package quota

import (
	"context"
	"sync"
)

// MemoryCounter keeps usage in process memory; it does not survive restarts
type MemoryCounter struct {
	mu     sync.Mutex
	period string
	used   int
	resets int
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{}
}

func (c *MemoryCounter) Reserve(_ context.Context, period string, count, ceiling int) (bool, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rollover(period)

	if c.used+count > ceiling {
		return false, c.used, nil
	}
	c.used += count
	return true, c.used, nil
}

func (c *MemoryCounter) Usage(_ context.Context, period string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.period != period {
		return 0, nil
	}
	return c.used, nil
}

// Resets returns how many period boundaries have been crossed
func (c *MemoryCounter) Resets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resets
}

func (c *MemoryCounter) rollover(period string) {
	if c.period == period {
		return
	}
	if c.period != "" {
		c.resets++
	}
	c.period = period
	c.used = 0
}
