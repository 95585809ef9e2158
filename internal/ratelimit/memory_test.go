package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 10, 10, 12, 0, 0, 0, time.UTC)}
}

func TestNewMemory_Validates(t *testing.T) {
	_, err := NewMemory(0, time.Minute)
	require.Error(t, err)
	_, err = NewMemory(1, 0)
	require.Error(t, err)
}

func TestMemory_AllowsUpToLimitPerWindow(t *testing.T) {
	clock := newClock()
	m, err := NewMemory(2, time.Minute)
	require.NoError(t, err)
	m.now = clock.Now

	ctx := context.Background()
	for i, want := range []bool{true, true, false, false} {
		ok, err := m.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		require.Equal(t, want, ok, "request %d", i)
	}

	ok, err := m.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	require.True(t, ok, "other clients have their own budget")

	clock.Advance(time.Minute)
	ok, err = m.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, ok, "a new window resets the budget")
}

func TestMemory_SweepsStaleVisitors(t *testing.T) {
	clock := newClock()
	m, err := NewMemory(5, time.Minute)
	require.NoError(t, err)
	m.now = clock.Now

	for _, key := range []string{"a", "b", "c"} {
		_, err := m.Allow(context.Background(), key)
		require.NoError(t, err)
	}
	require.Len(t, m.visitors, 3)

	clock.Advance(2 * time.Minute)
	_, err = m.Allow(context.Background(), "d")
	require.NoError(t, err)
	require.Len(t, m.visitors, 1)
}

func TestMemory_ConcurrentAllowRespectsLimit(t *testing.T) {
	m, err := NewMemory(10, time.Hour)
	require.NoError(t, err)
	clock := newClock()
	m.now = clock.Now

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := m.Allow(context.Background(), "same")
			if ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 10, allowed)
}
