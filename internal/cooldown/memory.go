package cooldown

import (
	"context"
	"sync"
	"time"

	"letsconnect/internal/clock"
)

const pruneThreshold = 1024

type memoryTracker struct {
	mu     sync.Mutex
	last   map[string]time.Time
	window time.Duration
	clock  clock.Clock
}

// NewMemory keeps issuance times in process memory. It only throttles
// correctly when a single instance serves every request.
func NewMemory(window time.Duration, clk clock.Clock) Tracker {
	if window <= 0 {
		return Disabled{}
	}
	return &memoryTracker{
		last:   make(map[string]time.Time),
		window: window,
		clock:  clk,
	}
}

func (m *memoryTracker) Touch(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	m.last[key] = now
	m.prune(now)
	return nil
}

func (m *memoryTracker) Reserve(_ context.Context, key string) (time.Duration, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if last, ok := m.last[key]; ok {
		if elapsed := now.Sub(last); elapsed < m.window {
			return m.window - elapsed, false, nil
		}
	}
	m.last[key] = now
	m.prune(now)
	return 0, true, nil
}

func (m *memoryTracker) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.last, key)
	return nil
}

// prune drops windows that have closed. Caller holds mu.
func (m *memoryTracker) prune(now time.Time) {
	if len(m.last) < pruneThreshold {
		return
	}
	for key, last := range m.last {
		if now.Sub(last) >= m.window {
			delete(m.last, key)
		}
	}
}
