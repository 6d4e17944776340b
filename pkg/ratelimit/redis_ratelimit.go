package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills and consumes atomically on the Redis side so
// multiple API instances share one bucket per key.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local burst = tonumber(ARGV[1])
local refill = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call('HMGET', key, 'tokens', 'last_fill')
local tokens = tonumber(data[1])
local last_fill = tonumber(data[2])

if tokens == nil then
	tokens = burst
	last_fill = now
end

local elapsed = math.max(0, now - last_fill)
tokens = math.min(burst, tokens + elapsed * refill)

local allowed = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
end

redis.call('HMSET', key, 'tokens', tokens, 'last_fill', now)
redis.call('EXPIRE', key, 600)
return allowed
`)

// RedisBucket is a distributed token bucket backed by a Lua script.
type RedisBucket struct {
	client       *redis.Client
	burst        int
	refillPerSec int
	prefix       string
}

func NewRedisBucket(client *redis.Client, burst, refillPerSec int) *RedisBucket {
	return &RedisBucket{
		client:       client,
		burst:        burst,
		refillPerSec: refillPerSec,
		prefix:       "ratelimit:",
	}
}

func (r *RedisBucket) Allow(ctx context.Context, key string) (bool, error) {
	now := float64(time.Now().UnixMilli()) / 1000.0
	res, err := tokenBucketScript.Run(ctx, r.client,
		[]string{r.prefix + key}, r.burst, r.refillPerSec, now).Int()
	if err != nil {
		return false, fmt.Errorf("ratelimit script: %w", err)
	}
	return res == 1, nil
}

func (r *RedisBucket) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
