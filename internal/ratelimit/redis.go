package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps window counters in Redis. The Lua script is the
// atomicity boundary: read, ceiling check, increment, and expiry all happen
// in one server-side step.
type RedisStore struct {
	rdb    *redis.Client
	script *redis.Script
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{
		rdb: rdb,
		script: redis.NewScript(`
			local limit = tonumber(ARGV[1])
			local window_ms = tonumber(ARGV[2])

			local count = tonumber(redis.call('GET', KEYS[1]) or '0')
			if count >= limit then
				local ttl = redis.call('PTTL', KEYS[1])
				if ttl < 0 then ttl = window_ms end
				return { 0, ttl }
			end

			count = redis.call('INCR', KEYS[1])
			if count == 1 then
				redis.call('PEXPIRE', KEYS[1], window_ms)
			end
			return { 1, 0 }
		`),
	}
}

func (s *RedisStore) Hit(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	vals, err := s.script.Run(ctx, s.rdb, []string{key}, limit, window.Milliseconds()).Result()
	if err != nil {
		return false, 0, err
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 2 {
		return true, 0, nil
	}
	allowed, _ := arr[0].(int64)
	retryMs, _ := arr[1].(int64)
	return allowed == 1, time.Duration(retryMs) * time.Millisecond, nil
}

func (s *RedisStore) Reset(ctx context.Context, keys ...string) error {
	return s.rdb.Del(ctx, keys...).Err()
}
