package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// gcraWindowScript applies the burst check as GCRA over a single theoretical
// arrival time, and the sustained cap as a sliding log in a sorted set. State
// is only written when the request is admitted.
//
// KEYS: tat, log. ARGV: now_ms, emission_ms, burst, limit, window_ms, member.
// Returns {allowed, retry_ms, remaining}.
var gcraWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local emission = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local limit = tonumber(ARGV[4])
local window = tonumber(ARGV[5])

local tat = tonumber(redis.call("GET", KEYS[1]) or now)
if tat < now then
  tat = now
end
local next_tat = tat + emission
local burst_wait = next_tat - emission * burst - now

redis.call("ZREMRANGEBYSCORE", KEYS[2], "-inf", now - window)
local used = redis.call("ZCARD", KEYS[2])
local window_wait = 0
if used >= limit then
  local first = redis.call("ZRANGE", KEYS[2], 0, 0, "WITHSCORES")
  window_wait = tonumber(first[2]) + window - now
end

if burst_wait > 0 or window_wait > 0 then
  local wait = math.max(burst_wait, window_wait, 1)
  local left = math.floor((emission * burst - (tat - now)) / emission)
  return {0, math.ceil(wait), math.max(math.min(left, limit - used), 0)}
end

redis.call("SET", KEYS[1], next_tat, "PX", math.ceil(math.max(next_tat - now, window)))
redis.call("ZADD", KEYS[2], now, ARGV[6])
redis.call("PEXPIRE", KEYS[2], window)
local left = math.floor((emission * burst - (next_tat - now)) / emission)
return {1, 0, math.max(math.min(left, limit - used - 1), 0)}
`)

// RedisLimiter shares limiter state across API replicas so a draft token is
// limited the same no matter which instance serves the autosave.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(client redis.UniversalClient, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "intake_rl"
	}
	return &RedisLimiter{client: client, prefix: prefix, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, policy RateLimitPolicy) (Decision, error) {
	if l.client == nil {
		return Decision{}, errors.New("redis limiter has no client")
	}
	policy = normalizePolicy(policy)
	if key == "" {
		key = "unknown"
	}
	now := l.now()
	nowMS := now.UnixMilli()
	emissionMS := max(1000.0/policy.BurstRefillPerSec, 1)
	windowMS := max(policy.SustainedWindow.Milliseconds(), 1)
	base := l.prefix + ":" + key

	raw, err := gcraWindowScript.Run(ctx, l.client,
		[]string{base + ":tat", base + ":log"},
		nowMS, emissionMS, policy.BurstCapacity, policy.SustainedLimit, windowMS, uuid.NewString(),
	).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	vals, err := redisInts(raw, 3)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{Allowed: vals[0] == 1, Remaining: int(max(vals[2], 0))}
	if d.Allowed {
		d.RetryAfter = time.Millisecond
		d.ResetAt = now.Add(policy.SustainedWindow)
		return d, nil
	}
	d.RetryAfter = time.Duration(max(vals[1], 1)) * time.Millisecond
	d.ResetAt = now.Add(d.RetryAfter)
	return d, nil
}

// redisInts converts a script reply into exactly n integers.
func redisInts(raw any, n int) ([]int64, error) {
	items, ok := raw.([]any)
	if !ok || len(items) != n {
		return nil, fmt.Errorf("rate limit script: unexpected reply %T", raw)
	}
	out := make([]int64, n)
	for i, item := range items {
		switch v := item.(type) {
		case int64:
			out[i] = v
		case int:
			out[i] = int64(v)
		case uint64:
			if v > math.MaxInt64 {
				return nil, fmt.Errorf("rate limit script: value %d overflows int64", v)
			}
			out[i] = int64(v)
		default:
			return nil, fmt.Errorf("rate limit script: unexpected element %T", item)
		}
	}
	return out, nil
}
