package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter decides whether a caller may issue another request
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

type rateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter creates a fixed-window limiter allowing limit requests per window
func NewRateLimiter(client *redis.Client, limit int, window time.Duration) RateLimiter {
	return &rateLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

func (l *rateLimiter) windowKey(key string, start int64) string {
	return fmt.Sprintf("ratelimit:%s:%d", key, start)
}

// Allow counts one request for key. When the window is exhausted it
// returns false and the time left until the window resets.
func (l *rateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := l.now()
	windowSec := int64(l.window / time.Second)
	if windowSec <= 0 {
		windowSec = 1
	}
	start := now.Unix() / windowSec * windowSec
	k := l.windowKey(key, start)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.Expire(ctx, k, l.window)
		return nil
	})
	if err != nil {
		return false, 0, err
	}

	if incr.Val() > l.limit {
		reset := time.Unix(start+windowSec, 0).Sub(now)
		if reset < time.Second {
			reset = time.Second
		}
		return false, reset, nil
	}
	return true, 0, nil
}
