package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisAPI is the subset of *redis.Client the limiter uses.
type redisAPI interface {
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

// Redis counts requests with INCR on a per-window key. The increment and
// the expiry run in one MULTI/EXEC, so no key is left without a TTL.
type Redis struct {
	api    redisAPI
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

func NewRedis(api redisAPI, limit int, window time.Duration, prefix string) (*Redis, error) {
	if api == nil {
		return nil, errors.New("ratelimit: redis client must not be nil")
	}
	if limit <= 0 {
		return nil, errors.New("ratelimit: limit must be positive")
	}
	if window <= 0 {
		return nil, errors.New("ratelimit: window must be positive")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "chat-ratelimit"
	}
	return &Redis{api: api, limit: limit, window: window, prefix: prefix, now: time.Now}, nil
}

// DialRedis parses a redis:// URL and verifies the connection.
func DialRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse redis url: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ratelimit: ping redis: %w", err)
	}
	return client, nil
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	k := r.prefix + ":" + key + ":" + windowID(r.now(), r.window)

	// The key names its window, so refreshing the TTL on every hit only
	// delays cleanup by at most one window. EXPIRE NX would need Redis 7.
	var incr *redis.IntCmd
	_, err := r.api.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.Expire(ctx, k, r.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("ratelimit: redis incr: %w", err)
	}
	return incr.Val() <= int64(r.limit), nil
}
