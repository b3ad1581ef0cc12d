package infra

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPoolSize = 20

// NewRedisClient configures a Redis client and verifies connectivity. The
// client backs session revocation, login throttling and idempotency keys.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := RedisOptions(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// RedisOptions parses a redis:// or rediss:// URL.
func RedisOptions(url string) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opt.PoolSize == 0 {
		opt.PoolSize = defaultRedisPoolSize
	}
	return opt, nil
}
