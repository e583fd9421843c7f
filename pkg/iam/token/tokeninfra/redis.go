package tokeninfra

import (
	"context"
	"fmt"
	"time"

	"github.com/axonlabs/axongate/pkg/errx"
	"github.com/redis/go-redis/v9"
)

// RedisBlacklist implements token.Blacklist on redis. Entries live exactly
// as long as the token they revoke; nothing outlives its exp.
type RedisBlacklist struct {
	rdb *redis.Client
}

// NewRedisBlacklist creates a new blacklist store.
func NewRedisBlacklist(rdb *redis.Client) *RedisBlacklist {
	return &RedisBlacklist{rdb: rdb}
}

func blacklistKey(jti string) string { return fmt.Sprintf("token:blacklist:%s", jti) }

// Add inserts the jti with its reason if absent. SET NX is the atomic gate: under
// concurrent revocation of the same jti exactly one caller observes true.
func (b *RedisBlacklist) Add(ctx context.Context, jti, reason string, ttl time.Duration) (bool, error) {
	inserted, err := b.rdb.SetNX(ctx, blacklistKey(jti), reason, ttl).Result()
	if err != nil {
		return false, errx.Wrap(err, "failed to insert blacklist entry", errx.TypeInternal).
			WithDetail("jti", jti)
	}
	return inserted, nil
}

// Contains reports membership by jti.
func (b *RedisBlacklist) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := b.rdb.Exists(ctx, blacklistKey(jti)).Result()
	if err != nil {
		return false, errx.Wrap(err, "failed to check blacklist membership", errx.TypeInternal).
			WithDetail("jti", jti)
	}
	return n > 0, nil
}
