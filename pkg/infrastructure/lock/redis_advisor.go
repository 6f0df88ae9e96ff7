package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
)

// releaseScript deletes the key only when it still names the caller.
// KEYS[1] = lock key
// ARGV[1] = holder
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// acquireScript sets the key when absent, or refreshes the TTL when the caller already holds it.
// KEYS[1] = lock key
// ARGV[1] = holder
// ARGV[2] = ttl in milliseconds
var acquireScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if not current then
    redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
    return 1
end
if current == ARGV[1] then
    redis.call("PEXPIRE", KEYS[1], ARGV[2])
    return 1
end
return 0
`)

// RedisAdvisor shares line locks between sessions running on different nodes
type RedisAdvisor struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisAdvisor creates an advisor on an existing client
func NewRedisAdvisor(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisAdvisor {
	if prefix == "" {
		prefix = "lotalloc:lock"
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisAdvisor{client: client, prefix: prefix, ttl: ttl}
}

// DialRedisAdvisor connects to addr and creates an advisor
func DialRedisAdvisor(addr, password string, db int, ttl time.Duration) *RedisAdvisor {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisAdvisor(rdb, "", ttl)
}

// Ping checks the connection
func (a *RedisAdvisor) Ping(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}

// Close closes the underlying client
func (a *RedisAdvisor) Close() error {
	return a.client.Close()
}

func (a *RedisAdvisor) key(lineID entities.OrderLineID) string {
	return fmt.Sprintf("%s:%s", a.prefix, lineID)
}

// LockedBy returns the current holder or "" when the line is free
func (a *RedisAdvisor) LockedBy(ctx context.Context, lineID entities.OrderLineID) (string, error) {
	holder, err := a.client.Get(ctx, a.key(lineID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis lock lookup: %w", err)
	}
	return holder, nil
}

// Acquire takes the lock for holder. Re-acquiring an own lock refreshes its TTL.
func (a *RedisAdvisor) Acquire(ctx context.Context, lineID entities.OrderLineID, holder string) (bool, error) {
	n, err := acquireScript.Run(ctx, a.client, []string{a.key(lineID)}, holder, a.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis lock acquire: %w", err)
	}
	return n == 1, nil
}

// Release drops the lock if holder owns it
func (a *RedisAdvisor) Release(ctx context.Context, lineID entities.OrderLineID, holder string) error {
	if err := releaseScript.Run(ctx, a.client, []string{a.key(lineID)}, holder).Err(); err != nil {
		return fmt.Errorf("redis lock release: %w", err)
	}
	return nil
}
