package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/axonlabs/axongate/pkg/errx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// admitScript performs the whole admission round server-side so concurrent
// admitters cannot over-admit: evict expired members, count, deny or insert,
// refresh the key expiry to twice the horizon.
//
// KEYS[1] window key
// ARGV[1] now (microseconds)
// ARGV[2] horizon (microseconds)
// ARGV[3] limit
// ARGV[4] member suffix (uniquifies same-microsecond inserts)
var admitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local horizon = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - horizon)

local count = redis.call('ZCARD', key)
if count >= limit then
    return {0, count}
end

redis.call('ZADD', key, now, tostring(now) .. '-' .. ARGV[4])
redis.call('PEXPIRE', key, math.ceil(horizon * 2 / 1000))
return {1, count + 1}
`)

// RedisStore implements Store on redis sorted sets.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a new sliding-window store.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func windowKey(key string) string { return fmt.Sprintf("ratelimit:%s", key) }

// Admit runs the admission script for one scope key.
func (s *RedisStore) Admit(ctx context.Context, key string, limit int, horizon time.Duration) (bool, int, error) {
	now := time.Now().UnixMicro()

	res, err := admitScript.Run(ctx, s.rdb,
		[]string{windowKey(key)},
		now,
		horizon.Microseconds(),
		limit,
		uuid.NewString()[:8],
	).Int64Slice()

	if err != nil {
		return false, 0, errx.Wrap(err, "rate limit admission failed", errx.TypeInternal).
			WithDetail("key", key)
	}
	if len(res) != 2 {
		return false, 0, errx.New("unexpected admission script reply", errx.TypeInternal)
	}

	return res[0] == 1, int(res[1]), nil
}

// Reset deletes one scope's window so its next request starts a fresh count.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, windowKey(key)).Err(); err != nil {
		return errx.Wrap(err, "rate limit reset failed", errx.TypeInternal).
			WithDetail("key", key)
	}
	return nil
}
