package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "otp:cooldown:"

type redisTracker struct {
	client *redis.Client
	window time.Duration
}

// NewRedis shares cooldown windows between instances through key expiry.
func NewRedis(client *redis.Client, window time.Duration) Tracker {
	if window <= 0 {
		return Disabled{}
	}
	return &redisTracker{client: client, window: window}
}

func (r *redisTracker) Touch(ctx context.Context, key string) error {
	if err := r.client.Set(ctx, keyPrefix+key, "1", r.window).Err(); err != nil {
		return fmt.Errorf("failed to record cooldown: %w", err)
	}
	return nil
}

func (r *redisTracker) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release cooldown: %w", err)
	}
	return nil
}

func (r *redisTracker) Reserve(ctx context.Context, key string) (time.Duration, bool, error) {
	k := keyPrefix + key

	// The key can expire between SETNX and PTTL, so retry once.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := r.client.SetNX(ctx, k, "1", r.window).Result()
		if err != nil {
			return 0, false, fmt.Errorf("failed to reserve cooldown: %w", err)
		}
		if ok {
			return 0, true, nil
		}

		ttl, err := r.client.PTTL(ctx, k).Result()
		if err != nil {
			return 0, false, fmt.Errorf("failed to read cooldown: %w", err)
		}
		if ttl > 0 {
			return ttl, false, nil
		}
	}
	return r.window, false, nil
}
