package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisIdempotencyRecord is the JSON value stored under each key.
type redisIdempotencyRecord struct {
	Fingerprint string              `json:"fp"`
	Completed   bool                `json:"done"`
	Response    *CachedHTTPResponse `json:"resp,omitempty"`
}

// RedisIdempotencyStore keeps reservations in Redis so a retried finalize
// replays the same response on any replica. Begin reserves with SET NX;
// Complete and Release use WATCH so they only touch the caller's reservation.
type RedisIdempotencyStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisIdempotencyStore(client redis.UniversalClient, prefix string) *RedisIdempotencyStore {
	if prefix == "" {
		prefix = "intake_idem"
	}
	return &RedisIdempotencyStore{client: client, prefix: prefix}
}

func (s *RedisIdempotencyStore) redisKey(scope, key string) string {
	return s.prefix + ":" + scope + ":" + key
}

func (s *RedisIdempotencyStore) Begin(ctx context.Context, scope, key, fingerprint string, ttl time.Duration) (IdempotencyBeginResult, error) {
	rk := s.redisKey(scope, key)
	fresh, err := json.Marshal(redisIdempotencyRecord{Fingerprint: fingerprint})
	if err != nil {
		return IdempotencyBeginResult{}, err
	}
	// The existing key can expire between SET NX and GET; one retry covers it.
	for attempt := 0; attempt < 2; attempt++ {
		reserved, err := s.client.SetNX(ctx, rk, fresh, ttl).Result()
		if err != nil {
			return IdempotencyBeginResult{}, fmt.Errorf("begin idempotency key: %w", err)
		}
		if reserved {
			return IdempotencyBeginResult{State: IdempotencyStateNew}, nil
		}
		rec, err := s.load(ctx, s.client, rk)
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return IdempotencyBeginResult{}, err
		}
		switch {
		case rec.Fingerprint != fingerprint:
			return IdempotencyBeginResult{State: IdempotencyStateConflict}, nil
		case !rec.Completed || rec.Response == nil:
			return IdempotencyBeginResult{State: IdempotencyStateInProgress}, nil
		default:
			return IdempotencyBeginResult{State: IdempotencyStateReplay, Cached: rec.Response}, nil
		}
	}
	return IdempotencyBeginResult{}, errors.New("begin idempotency key: reservation kept changing")
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, scope, key, fingerprint string, response CachedHTTPResponse, ttl time.Duration) error {
	rk := s.redisKey(scope, key)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		rec, err := s.load(ctx, tx, rk)
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if rec.Fingerprint != fingerprint {
			return nil
		}
		rec.Completed = true
		rec.Response = &response
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, rk, raw, ttl)
			return nil
		})
		return err
	}, rk)
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release drops an unfinished reservation so a retry with the same key runs
// again. Completed responses stay until they expire.
func (s *RedisIdempotencyStore) Release(ctx context.Context, scope, key, fingerprint string) error {
	rk := s.redisKey(scope, key)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		rec, err := s.load(ctx, tx, rk)
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if rec.Fingerprint != fingerprint || rec.Completed {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, rk)
			return nil
		})
		return err
	}, rk)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func (s *RedisIdempotencyStore) load(ctx context.Context, c redis.Cmdable, rk string) (redisIdempotencyRecord, error) {
	var rec redisIdempotencyRecord
	raw, err := c.Get(ctx, rk).Bytes()
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, fmt.Errorf("decode idempotency record: %w", err)
	}
	return rec, nil
}
