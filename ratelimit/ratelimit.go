// Package ratelimit implements cooldown throttles: once a key is allowed it
// is refused until the interval elapsed. Both implementations satisfy
// accounts.Throttle.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval is the cooldown between two allowed actions on a key.
const DefaultInterval = time.Minute

// Memory keeps cooldowns in process memory.
type Memory struct {
	mu       sync.Mutex
	interval time.Duration
	now      func() time.Time
	until    map[string]time.Time
}

type MemoryOption func(*Memory)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

func NewMemory(interval time.Duration, opts ...MemoryOption) *Memory {
	if interval <= 0 {
		interval = DefaultInterval
	}

	m := &Memory{
		interval: interval,
		now:      time.Now,
		until:    map[string]time.Time{},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *Memory) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return false, 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if until, ok := m.until[key]; ok && now.Before(until) {
		return false, until.Sub(now), nil
	}

	m.until[key] = now.Add(m.interval)
	m.sweep(now)
	return true, 0, nil
}

// sweep drops expired cooldowns so the map does not grow without bound.
func (m *Memory) sweep(now time.Time) {
	for key, until := range m.until {
		if !now.Before(until) {
			delete(m.until, key)
		}
	}
}
