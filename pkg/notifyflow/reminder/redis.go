package reminder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "notifyflow:reminder:expired:"

// RedisTracker shares reminder cooldowns across processes. Each mark is a
// key that expires when the cooldown ends.
type RedisTracker struct {
	client   redis.Cmdable
	cooldown time.Duration
}

// NewRedisTracker creates a tracker on an existing client.
func NewRedisTracker(client redis.Cmdable, cooldown time.Duration) *RedisTracker {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &RedisTracker{client: client, cooldown: cooldown}
}

// Connect creates a Redis client from a redis:// URL or a host:port address.
func Connect(addr string) (*redis.Client, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}

// SentRecently implements Tracker.
func (t *RedisTracker) SentRecently(ctx context.Context, tenantID string) (bool, error) {
	n, err := t.client.Exists(ctx, keyPrefix+tenantID).Result()
	if err != nil {
		return false, fmt.Errorf("check reminder: %w", err)
	}
	return n > 0, nil
}

// MarkSent implements Tracker.
func (t *RedisTracker) MarkSent(ctx context.Context, tenantID string) error {
	stamp := time.Now().UTC().Format(time.RFC3339)
	if err := t.client.SetNX(ctx, keyPrefix+tenantID, stamp, t.cooldown).Err(); err != nil {
		return fmt.Errorf("mark reminder: %w", err)
	}
	return nil
}
