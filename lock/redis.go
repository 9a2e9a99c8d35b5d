// ABOUTME: Redis-backed Locker using SET NX PX and an owner-checked delete
// ABOUTME: Used when reconciliation runs on more than one host against a shared store
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker stores leases as keys with a TTL.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

// NewRedisLocker wraps an existing client.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client, prefix: "leadsync:lock:"}
}

// NewRedisLockerFromURL connects using a redis:// URL.
func NewRedisLockerFromURL(url string) (*RedisLocker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisLocker(redis.NewClient(opt)), nil
}

func (r *RedisLocker) key(name string) string {
	return r.prefix + name
}

// TryAcquire sets the key only if absent. A key already owned by owner
// has its TTL refreshed.
func (r *RedisLocker) TryAcquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(name), owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", name, err)
	}
	if ok {
		return true, nil
	}

	current, err := r.client.Get(ctx, r.key(name)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", name, err)
	}
	if current != owner {
		return false, nil
	}
	if err := r.client.PExpire(ctx, r.key(name), ttl).Err(); err != nil {
		return false, fmt.Errorf("redis pexpire %s: %w", name, err)
	}
	return true, nil
}

// Release deletes the key only if owner still holds it.
func (r *RedisLocker) Release(ctx context.Context, name, owner string) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.key(name)}, owner).Err(); err != nil {
		return fmt.Errorf("redis release %s: %w", name, err)
	}
	return nil
}

// Close closes the underlying client.
func (r *RedisLocker) Close() error {
	return r.client.Close()
}
