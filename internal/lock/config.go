package lock

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/scrypster/kinstory/internal/config"
)

// FromConfig returns a Redis locker when cfg names a Redis URL and an
// in-process locker otherwise. closeFn releases the Redis client.
func FromConfig(ctx context.Context, cfg config.LockConfig) (l Locker, closeFn func() error, err error) {
	if cfg.RedisURL == "" {
		return NewLocal(), func() error { return nil }, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	var options []RedisOption
	if cfg.TTL > 0 {
		options = append(options, WithTTL(cfg.TTL))
	}
	if cfg.KeyPrefix != "" {
		options = append(options, WithKeyPrefix(cfg.KeyPrefix))
	}
	r := NewRedis(client, options...)
	if err := r.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	return r, client.Close, nil
}
