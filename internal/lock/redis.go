package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// release deletes the key only when it still carries our token.
var release = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every instance talking to the same Redis.
// Each lease expires after its TTL so a crashed holder cannot wedge an owner.
type Redis struct {
	client        *redis.Client
	keyPrefix     string
	ttl           time.Duration
	retryInterval time.Duration
}

// RedisOption configures a Redis locker.
type RedisOption func(*Redis)

// WithKeyPrefix sets the key prefix (default "kinstory:lock:").
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.keyPrefix = prefix
	}
}

// WithTTL sets how long a lease lives without being released.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// WithRetryInterval sets the poll interval while waiting for a held lock.
func WithRetryInterval(d time.Duration) RedisOption {
	return func(r *Redis) {
		r.retryInterval = d
	}
}

// NewRedis creates a Redis-backed locker.
func NewRedis(client *redis.Client, options ...RedisOption) *Redis {
	r := &Redis{
		client:        client,
		keyPrefix:     "kinstory:lock:",
		ttl:           10 * time.Second,
		retryInterval: 25 * time.Millisecond,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Lock implements Locker.
func (r *Redis) Lock(ctx context.Context, owner string) (Unlock, error) {
	key := r.keyPrefix + owner
	token := uuid.NewString()

	ticker := time.NewTicker(r.retryInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock: failed to acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return func(ctx context.Context) error {
		n, err := release.Run(ctx, r.client, []string{key}, token).Int64()
		if err != nil {
			return fmt.Errorf("lock: failed to release %s: %w", key, err)
		}
		if n == 0 {
			return ErrNotHeld
		}
		return nil
	}, nil
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
