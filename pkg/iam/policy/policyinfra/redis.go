package policyinfra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/axonlabs/axongate/pkg/errx"
	"github.com/axonlabs/axongate/pkg/iam/policy"
	"github.com/redis/go-redis/v9"
)

const documentKey = "policy:document"

func banKey(ip string) string     { return fmt.Sprintf("policy:ban:%s", ip) }
func counterKey(ip string) string { return fmt.Sprintf("policy:failcount:%s", ip) }

// failureScript bumps the per-ip failure counter atomically. The counter's
// TTL is set only on the first increment so the window is anchored at the
// first failure, not sliding. Reaching the threshold writes the ban entry
// and clears the counter in the same round.
//
// KEYS[1] counter key
// KEYS[2] ban key
// ARGV[1] threshold
// ARGV[2] counter ttl (seconds)
// ARGV[3] ban ttl (seconds)
// ARGV[4] unban-at (unix seconds, stored as the ban value)
var failureScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('EXPIRE', KEYS[1], tonumber(ARGV[2]))
end
if count >= tonumber(ARGV[1]) then
    redis.call('SET', KEYS[2], ARGV[4], 'EX', tonumber(ARGV[3]))
    redis.call('DEL', KEYS[1])
    return 1
end
return 0
`)

// RedisPolicyStore implements both policy ports on redis.
type RedisPolicyStore struct {
	rdb *redis.Client
}

// NewRedisPolicyStore creates the store.
func NewRedisPolicyStore(rdb *redis.Client) *RedisPolicyStore {
	return &RedisPolicyStore{rdb: rdb}
}

// Load returns the policy document, seeding defaults on an empty store.
// SET NX makes concurrent first readers agree on one document.
func (s *RedisPolicyStore) Load(ctx context.Context) (*policy.Document, error) {
	raw, err := s.rdb.Get(ctx, documentKey).Result()
	if errors.Is(err, redis.Nil) {
		doc := policy.Defaults()
		seeded, err := json.Marshal(doc)
		if err != nil {
			return nil, errx.Wrap(err, "failed to encode default policy", errx.TypeInternal)
		}

		inserted, err := s.rdb.SetNX(ctx, documentKey, seeded, 0).Result()
		if err != nil {
			return nil, errx.Wrap(err, "failed to seed policy document", errx.TypeInternal)
		}
		if inserted {
			return doc, nil
		}
		// Another writer seeded first; read theirs.
		raw, err = s.rdb.Get(ctx, documentKey).Result()
		if err != nil {
			return nil, errx.Wrap(err, "failed to load policy document", errx.TypeInternal)
		}
	} else if err != nil {
		return nil, errx.Wrap(err, "failed to load policy document", errx.TypeInternal)
	}

	var doc policy.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, errx.Wrap(err, "stored policy document is corrupt", errx.TypeInternal)
	}
	return &doc, nil
}

// Save replaces the document. Callers validate first.
func (s *RedisPolicyStore) Save(ctx context.Context, doc *policy.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return errx.Wrap(err, "failed to encode policy document", errx.TypeInternal)
	}
	if err := s.rdb.Set(ctx, documentKey, raw, 0).Err(); err != nil {
		return errx.Wrap(err, "failed to save policy document", errx.TypeInternal)
	}
	return nil
}

// RecordFailure runs the counter script for one failed login.
func (s *RedisPolicyStore) RecordFailure(ctx context.Context, ip string, threshold int, banFor time.Duration) (bool, error) {
	unbanAt := time.Now().Add(banFor).Unix()

	res, err := failureScript.Run(ctx, s.rdb,
		[]string{counterKey(ip), banKey(ip)},
		threshold,
		int(time.Hour.Seconds()),
		int(banFor.Seconds()),
		unbanAt,
	).Int64()
	if err != nil {
		return false, errx.Wrap(err, "failed to record login failure", errx.TypeInternal).
			WithDetail("ip", ip)
	}
	return res == 1, nil
}

// BannedUntil reads the ban entry; the stored value is the unban time.
func (s *RedisPolicyStore) BannedUntil(ctx context.Context, ip string) (bool, time.Time, error) {
	raw, err := s.rdb.Get(ctx, banKey(ip)).Int64()
	if errors.Is(err, redis.Nil) {
		return false, time.Time{}, nil
	}
	if err != nil {
		return false, time.Time{}, errx.Wrap(err, "failed to check ban table", errx.TypeInternal).
			WithDetail("ip", ip)
	}
	return true, time.Unix(raw, 0), nil
}

// ClearFailures deletes the counter only; an active ban stays until it
// expires or is lifted.
func (s *RedisPolicyStore) ClearFailures(ctx context.Context, ip string) error {
	if err := s.rdb.Del(ctx, counterKey(ip)).Err(); err != nil {
		return errx.Wrap(err, "failed to clear failure counter", errx.TypeInternal).
			WithDetail("ip", ip)
	}
	return nil
}

// Unban lifts a ban and clears the counter.
func (s *RedisPolicyStore) Unban(ctx context.Context, ip string) error {
	if err := s.rdb.Del(ctx, banKey(ip), counterKey(ip)).Err(); err != nil {
		return errx.Wrap(err, "failed to lift ban", errx.TypeInternal).WithDetail("ip", ip)
	}
	return nil
}
