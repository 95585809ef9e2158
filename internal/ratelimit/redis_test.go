package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// fakeRedis runs a transaction against in-memory counters. Commands queued
// in the pipeline only take effect if the whole transaction succeeds.
type fakeRedis struct {
	counts  map[string]int64
	expired map[string]time.Duration
	execErr error
	txs     int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{counts: map[string]int64{}, expired: map[string]time.Duration{}}
}

func (f *fakeRedis) TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error) {
	pipe := &fakePipe{}
	if err := fn(pipe); err != nil {
		return nil, err
	}
	f.txs++
	if f.execErr != nil {
		return nil, f.execErr
	}
	cmds := make([]redis.Cmder, 0, len(pipe.ops))
	for _, op := range pipe.ops {
		cmds = append(cmds, op(f))
	}
	return cmds, nil
}

// fakePipe implements only the pipeline commands the limiter queues.
type fakePipe struct {
	redis.Pipeliner
	ops []func(*fakeRedis) redis.Cmder
}

func (p *fakePipe) Incr(ctx context.Context, key string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "incr", key)
	p.ops = append(p.ops, func(f *fakeRedis) redis.Cmder {
		f.counts[key]++
		cmd.SetVal(f.counts[key])
		return cmd
	})
	return cmd
}

func (p *fakePipe) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx, "expire", key, expiration)
	p.ops = append(p.ops, func(f *fakeRedis) redis.Cmder {
		f.expired[key] = expiration
		cmd.SetVal(true)
		return cmd
	})
	return cmd
}

func TestNewRedis_Validates(t *testing.T) {
	_, err := NewRedis(nil, 1, time.Minute, "")
	require.Error(t, err)
	_, err = NewRedis(newFakeRedis(), 0, time.Minute, "")
	require.Error(t, err)
	_, err = NewRedis(newFakeRedis(), 1, 0, "")
	require.Error(t, err)
}

func TestRedis_CountsPerWindow(t *testing.T) {
	clock := newClock()
	fake := newFakeRedis()
	r, err := NewRedis(fake, 2, time.Minute, "")
	require.NoError(t, err)
	r.now = clock.Now

	ctx := context.Background()
	for i, want := range []bool{true, true, false} {
		ok, err := r.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		require.Equal(t, want, ok, "request %d", i)
	}

	key := "chat-ratelimit:1.2.3.4:" + windowID(clock.Now(), time.Minute)
	require.Equal(t, int64(3), fake.counts[key])
	require.Equal(t, time.Minute, fake.expired[key])
	require.Equal(t, 3, fake.txs, "one transaction per request")

	clock.Advance(time.Minute)
	ok, err := r.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedis_FailedTransactionLeavesNoCount(t *testing.T) {
	fake := newFakeRedis()
	fake.execErr = errors.New("connection refused")
	r, err := NewRedis(fake, 1, time.Minute, "p")
	require.NoError(t, err)

	_, err = r.Allow(context.Background(), "k")
	require.ErrorContains(t, err, "redis incr")
	require.Empty(t, fake.counts)
	require.Empty(t, fake.expired)
}

func TestRedis_EveryCountedKeyHasExpiry(t *testing.T) {
	clock := newClock()
	fake := newFakeRedis()
	r, err := NewRedis(fake, 1, time.Minute, "p")
	require.NoError(t, err)
	r.now = clock.Now

	for i := 0; i < 3; i++ {
		_, err := r.Allow(context.Background(), "k")
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}
	require.Len(t, fake.counts, 3)
	for key := range fake.counts {
		require.Equal(t, time.Minute, fake.expired[key], key)
	}
}

func TestDialRedis_BadURL(t *testing.T) {
	_, err := DialRedis(context.Background(), "not a url")
	require.ErrorContains(t, err, "parse redis url")
}
