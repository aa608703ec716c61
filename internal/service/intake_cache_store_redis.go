package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// intakeCacheVersionTTL outlives any record ttl so a version key never
// expires while a value written under it is still live.
const intakeCacheVersionTTL = 24 * time.Hour

type RedisIntakeCacheStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisIntakeCacheStore(client redis.UniversalClient, prefix string) *RedisIntakeCacheStore {
	if prefix == "" {
		prefix = "intake_cache"
	}
	return &RedisIntakeCacheStore{client: client, prefix: prefix}
}

func (s *RedisIntakeCacheStore) Get(ctx context.Context, id uint) ([]byte, bool, error) {
	if s.client == nil {
		return nil, false, nil
	}
	val, err := s.client.Get(ctx, intakeCacheKey(s.prefix, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *RedisIntakeCacheStore) Version(ctx context.Context, id uint) (uint64, error) {
	if s.client == nil {
		return 0, nil
	}
	return readIntakeCacheVersion(ctx, s.client, intakeCacheVersionKey(s.prefix, id))
}

// Set writes under WATCH on the version key; a concurrent Invalidate aborts
// the transaction and the value is dropped.
func (s *RedisIntakeCacheStore) Set(ctx context.Context, id uint, version uint64, value []byte, ttl time.Duration) (bool, error) {
	if s.client == nil || ttl <= 0 {
		return false, nil
	}
	versionKey := intakeCacheVersionKey(s.prefix, id)
	stored := false
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readIntakeCacheVersion(ctx, tx, versionKey)
		if err != nil {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, intakeCacheKey(s.prefix, id), value, ttl)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, versionKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored, nil
}

func (s *RedisIntakeCacheStore) Invalidate(ctx context.Context, id uint) error {
	if s.client == nil {
		return nil
	}
	versionKey := intakeCacheVersionKey(s.prefix, id)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, intakeCacheKey(s.prefix, id))
		pipe.Incr(ctx, versionKey)
		pipe.Expire(ctx, versionKey, intakeCacheVersionTTL)
		return nil
	})
	return err
}

func readIntakeCacheVersion(ctx context.Context, c redis.StringCmdable, key string) (uint64, error) {
	v, err := c.Get(ctx, key).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}
