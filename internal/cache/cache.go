// Package cache publishes job and call progress to Redis so that
// status reads do not hit Postgres. The cache is advisory; the
// pipeline never depends on it.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache records pipeline progress for cheap status lookups.
type Cache interface {
	Ping(ctx context.Context) error
	SetJobStatus(ctx context.Context, jobID, status string) error
	SetCallStage(ctx context.Context, callID, stage string) error
	Close() error
}

// statusTTL bounds how long stale entries linger after a crash.
const statusTTL = 24 * time.Hour

// RedisCache implements Cache over a Redis connection.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *RedisCache) SetJobStatus(ctx context.Context, jobID, status string) error {
	if err := c.client.Set(ctx, jobStatusKey(jobID), status, statusTTL).Err(); err != nil {
		return fmt.Errorf("failed to set job status: %w", err)
	}
	return nil
}

func (c *RedisCache) SetCallStage(ctx context.Context, callID, stage string) error {
	if err := c.client.Set(ctx, callStageKey(callID), stage, statusTTL).Err(); err != nil {
		return fmt.Errorf("failed to set call stage: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Noop is used when no Redis URL is configured.
type Noop struct{}

func (Noop) Ping(context.Context) error { return nil }

func (Noop) SetJobStatus(context.Context, string, string) error { return nil }

func (Noop) SetCallStage(context.Context, string, string) error { return nil }

func (Noop) Close() error { return nil }

var (
	_ Cache = (*RedisCache)(nil)
	_ Cache = Noop{}
)
