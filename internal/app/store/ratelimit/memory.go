// internal/app/store/ratelimit/memory.go
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	count int
	start time.Time
}

// MemoryBackend keeps counters in process memory. Counters are lost on
// restart and are not shared between instances.
type MemoryBackend struct {
	mu       sync.Mutex
	counters map[string]*counter
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{counters: make(map[string]*counter)}
}

// Count implements Backend.
func (m *MemoryBackend) Count(_ context.Context, key string, window time.Duration, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.counters[key]
	if !ok || expired(c.start, window, now) {
		return 0, nil
	}
	return c.count, nil
}

// Increment implements Backend. The read-modify-write happens under the lock.
func (m *MemoryBackend) Increment(_ context.Context, key string, window time.Duration, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.counters[key]
	if !ok {
		c = &counter{start: now}
		m.counters[key] = c
	} else if expired(c.start, window, now) {
		c.count = 0
		c.start = now
	}
	c.count++
	return c.count, nil
}

// Prune implements Pruner.
func (m *MemoryBackend) Prune(_ context.Context, window time.Duration, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, c := range m.counters {
		if expired(c.start, window, now) {
			delete(m.counters, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of tracked addresses.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counters)
}
