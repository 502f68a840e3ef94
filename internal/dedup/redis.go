package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Suppressor shared by every process pointing at the same Redis.
// The key's TTL is the window, so no sweep is needed.
type Redis struct {
	client redis.Cmdable
	prefix string
	window time.Duration
}

// NewRedis creates a Redis-backed suppressor. An empty prefix defaults to
// "dedup".
func NewRedis(client redis.Cmdable, prefix string, window time.Duration) *Redis {
	if prefix == "" {
		prefix = "dedup"
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Redis{client: client, prefix: prefix, window: window}
}

// CheckAndRegister sets the key only if absent. When it already exists the
// remaining TTL becomes the retry hint. On Redis errors the request is
// admitted and the error returned so the caller can log it.
func (s *Redis) CheckAndRegister(ctx context.Context, r Request) (Decision, error) {
	if !IsMutating(r.Method) {
		return Admit, nil
	}
	key := fmt.Sprintf("%s:%s", s.prefix, Key(r))

	ok, err := s.client.SetNX(ctx, key, 1, s.window).Result()
	if err != nil {
		return Admit, fmt.Errorf("redis setnx: %w", err)
	}
	if ok {
		return Admit, nil
	}

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return Admit, fmt.Errorf("redis pttl: %w", err)
	}
	if ttl <= 0 {
		// Expired between the two calls, or the key has no TTL.
		return reject(time.Second), nil
	}
	return reject(ttl), nil
}
