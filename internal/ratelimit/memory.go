package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

type visitor struct {
	start time.Time
	count int
}

// Memory is an in-process fixed-window limiter.
type Memory struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewMemory(limit int, window time.Duration) (*Memory, error) {
	if limit <= 0 {
		return nil, errors.New("ratelimit: limit must be positive")
	}
	if window <= 0 {
		return nil, errors.New("ratelimit: window must be positive")
	}
	return &Memory{
		visitors: make(map[string]*visitor),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}, nil
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	start := windowStart(now, m.window)
	m.sweep(now, start)

	v, ok := m.visitors[key]
	if !ok || !v.start.Equal(start) {
		m.visitors[key] = &visitor{start: start, count: 1}
		return true, nil
	}
	v.count++
	return v.count <= m.limit, nil
}

// sweep drops visitors from past windows at most once per window.
func (m *Memory) sweep(now, start time.Time) {
	if now.Sub(m.lastSweep) < m.window {
		return
	}
	m.lastSweep = now
	for key, v := range m.visitors {
		if v.start.Before(start) {
			delete(m.visitors, key)
		}
	}
}
