package sessioninfra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/axonlabs/axongate/pkg/errx"
	"github.com/axonlabs/axongate/pkg/iam/session"
	"github.com/axonlabs/axongate/pkg/kernel"
	"github.com/axonlabs/axongate/pkg/logx"
	"github.com/redis/go-redis/v9"
)

const (
	activityCap = 100
	activityTTL = 7 * 24 * time.Hour
)

// rebindScript swaps the bound jtis inside the stored record in one round,
// preserving the key's remaining TTL. Returns the previous pair, or a nil
// reply when the session is gone.
var rebindScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
    return false
end

local s = cjson.decode(raw)
local old = {s['access_jti'] or '', s['refresh_jti'] or ''}
s['access_jti'] = ARGV[1]
s['refresh_jti'] = ARGV[2]

local ttl = redis.call('PTTL', KEYS[1])
if ttl > 0 then
    redis.call('SET', KEYS[1], cjson.encode(s), 'PX', ttl)
else
    redis.call('SET', KEYS[1], cjson.encode(s))
end
return old
`)

// RedisStore implements session.Store. One JSON record per session under a
// TTL bounded by the hard lifetime, a per-user index sorted by creation
// time, and a bounded activity trail per session.
type RedisStore struct {
	rdb          *redis.Client
	hardLifetime time.Duration
}

// NewRedisStore creates the session store. hardLifetime caps every key's
// TTL so abandoned sessions cannot outlive their tokens.
func NewRedisStore(rdb *redis.Client, hardLifetime time.Duration) *RedisStore {
	if hardLifetime <= 0 {
		hardLifetime = 24 * time.Hour
	}
	return &RedisStore{rdb: rdb, hardLifetime: hardLifetime}
}

func sessionKey(id kernel.SessionID) string  { return fmt.Sprintf("session:%s", id) }
func userIndexKey(id kernel.UserID) string   { return fmt.Sprintf("session:user:%s", id) }
func activityKey(id kernel.SessionID) string { return fmt.Sprintf("session:activity:%s", id) }

// Save writes the record and indexes it under its owner. The TTL is the
// lifetime remaining from creation, so a re-save never extends a session
// past its hard limit.
func (s *RedisStore) Save(ctx context.Context, sess *session.Session) error {
	if !sess.Valid() {
		return session.ErrCorruptRecord(errors.New("refusing to save incomplete session"))
	}

	raw, err := json.Marshal(sess)
	if err != nil {
		return session.ErrCorruptRecord(err)
	}

	ttl := s.hardLifetime - time.Since(sess.CreatedAt)
	if ttl <= 0 {
		return session.ErrSessionExpired()
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, sessionKey(sess.ID), raw, ttl)
	pipe.ZAdd(ctx, userIndexKey(sess.UserID), redis.Z{
		Score:  float64(sess.CreatedAt.UnixMilli()),
		Member: sess.ID.String(),
	})
	pipe.Expire(ctx, userIndexKey(sess.UserID), s.hardLifetime)
	if _, err := pipe.Exec(ctx); err != nil {
		return errx.Wrap(err, "failed to save session", errx.TypeInternal).
			WithDetail("session_id", sess.ID.String())
	}
	return nil
}

// Get fetches and strictly decodes one session. A record that does not
// decode or fails validation is deleted on sight.
func (s *RedisStore) Get(ctx context.Context, id kernel.SessionID) (*session.Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrSessionNotFound()
	}
	if err != nil {
		return nil, errx.Wrap(err, "failed to fetch session", errx.TypeInternal).
			WithDetail("session_id", id.String())
	}

	var sess session.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		s.purge(ctx, id, "")
		return nil, session.ErrCorruptRecord(err)
	}
	if !sess.Valid() {
		s.purge(ctx, id, sess.UserID)
		return nil, session.ErrCorruptRecord(errors.New("record missing required fields"))
	}

	return &sess, nil
}

// Delete removes the record, its index entry, and its activity trail.
func (s *RedisStore) Delete(ctx context.Context, id kernel.SessionID) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		if errx.HasCode(err, session.CodeSessionNotFound) || errx.HasCode(err, session.CodeCorruptRecord) {
			return nil
		}
		return err
	}

	s.purge(ctx, id, sess.UserID)
	return nil
}

func (s *RedisStore) purge(ctx context.Context, id kernel.SessionID, userID kernel.UserID) {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, sessionKey(id), activityKey(id))
	if !userID.IsEmpty() {
		pipe.ZRem(ctx, userIndexKey(userID), id.String())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logx.WithError(err).WithField("session_id", id.String()).Warn("failed to purge session keys")
	}
}

// ListForUser walks the user's index oldest-first, pruning ids whose record
// has expired or gone corrupt.
func (s *RedisStore) ListForUser(ctx context.Context, userID kernel.UserID) ([]*session.Session, error) {
	ids, err := s.rdb.ZRange(ctx, userIndexKey(userID), 0, -1).Result()
	if err != nil {
		return nil, errx.Wrap(err, "failed to list user sessions", errx.TypeInternal).
			WithDetail("user_id", userID.String())
	}

	sessions := make([]*session.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.Get(ctx, kernel.NewSessionID(id))
		if err != nil {
			if errx.HasCode(err, session.CodeCorruptRecord) {
				logx.WithField("session_id", id).Warn("dropped corrupt session record")
			}
			s.rdb.ZRem(ctx, userIndexKey(userID), id)
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// Rebind swaps the bound jtis in place and reports the previous pair.
func (s *RedisStore) Rebind(ctx context.Context, id kernel.SessionID, accessJTI, refreshJTI string) (string, string, error) {
	res, err := rebindScript.Run(ctx, s.rdb, []string{sessionKey(id)}, accessJTI, refreshJTI).StringSlice()
	if errors.Is(err, redis.Nil) {
		return "", "", session.ErrSessionNotFound()
	}
	if err != nil {
		return "", "", errx.Wrap(err, "failed to rebind session", errx.TypeInternal).
			WithDetail("session_id", id.String())
	}
	if len(res) != 2 {
		return "", "", session.ErrCorruptRecord(fmt.Errorf("rebind returned %d values", len(res)))
	}
	return res[0], res[1], nil
}

// AppendActivity pushes one entry onto the bounded trail.
func (s *RedisStore) AppendActivity(ctx context.Context, id kernel.SessionID, a session.Activity) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return errx.Wrap(err, "failed to encode activity", errx.TypeInternal)
	}

	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, activityKey(id), raw)
	pipe.LTrim(ctx, activityKey(id), 0, activityCap-1)
	pipe.Expire(ctx, activityKey(id), activityTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return errx.Wrap(err, "failed to append session activity", errx.TypeInternal).
			WithDetail("session_id", id.String())
	}
	return nil
}

// Activities returns up to limit entries, newest first. Unparseable entries
// are skipped.
func (s *RedisStore) Activities(ctx context.Context, id kernel.SessionID, limit int) ([]session.Activity, error) {
	if limit <= 0 || limit > activityCap {
		limit = activityCap
	}

	raws, err := s.rdb.LRange(ctx, activityKey(id), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, errx.Wrap(err, "failed to fetch session activity", errx.TypeInternal).
			WithDetail("session_id", id.String())
	}

	out := make([]session.Activity, 0, len(raws))
	for _, raw := range raws {
		var a session.Activity
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// Sweep walks every user index and re-lists it, which prunes dangling and
// corrupt entries as a side effect of ListForUser.
func (s *RedisStore) Sweep(ctx context.Context) error {
	iter := s.rdb.Scan(ctx, 0, "session:user:*", 200).Iterator()
	for iter.Next(ctx) {
		userID := kernel.NewUserID(strings.TrimPrefix(iter.Val(), "session:user:"))
		if _, err := s.ListForUser(ctx, userID); err != nil {
			logx.WithError(err).WithField("user_id", userID.String()).Warn("sweep skipped user index")
		}
	}
	if err := iter.Err(); err != nil {
		return errx.Wrap(err, "session sweep scan failed", errx.TypeInternal)
	}
	return nil
}
