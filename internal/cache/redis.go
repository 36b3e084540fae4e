package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wayfarer-ai/wayfarer/internal/model"
)

const (
	bufferKeyFmt = "memory:st:%s"
	leaseKeyFmt  = "memory:st:%s:lock"
)

// releaseScript deletes the lease key only when it still holds our token, so
// an expired-and-reacquired lease is never released by the previous holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore implements Store on a Redis list per user.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects to Redis at url (redis:// URI) and verifies
// connectivity.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, model.NewStoreUnavailable("cache", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

// NewRedisStoreWithClient wraps an existing client; the caller owns its lifecycle.
func NewRedisStoreWithClient(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

func (s *RedisStore) GetTurns(ctx context.Context, userID string) ([]model.Turn, error) {
	key := fmt.Sprintf(bufferKeyFmt, userID)
	raw, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return []model.Turn{}, nil
		}
		return nil, model.NewStoreUnavailable("cache", err)
	}
	turns := make([]model.Turn, 0, len(raw))
	for _, item := range raw {
		var t model.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("corrupt buffer entry for user %s: %w", userID, err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *RedisStore) AppendTurns(ctx context.Context, userID string, turns []model.Turn, window int) error {
	if len(turns) == 0 {
		return nil
	}
	vals := make([]interface{}, 0, len(turns))
	for _, t := range turns {
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		vals = append(vals, b)
	}
	key := fmt.Sprintf(bufferKeyFmt, userID)
	// RPUSH + LTRIM run as one transaction so no reader or writer observes
	// the buffer mid-update.
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, vals...)
	pipe.LTrim(ctx, key, int64(-window), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return model.NewStoreUnavailable("cache", err)
	}
	return nil
}

func (s *RedisStore) AcquireLease(ctx context.Context, userID string, ttl time.Duration) (Lease, error) {
	key := fmt.Sprintf(leaseKeyFmt, userID)
	token := uuid.NewString()
	ok, err := s.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, model.NewStoreUnavailable("cache", err)
	}
	if !ok {
		return nil, model.ErrBufferLocked
	}
	return &redisLease{rdb: s.rdb, key: key, token: token}, nil
}

// HealthPing implements health.HealthPinger.
func (s *RedisStore) HealthPing(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *RedisStore) Close() error { return s.rdb.Close() }

type redisLease struct {
	rdb   *redis.Client
	key   string
	token string
}

func (l *redisLease) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Err()
}
