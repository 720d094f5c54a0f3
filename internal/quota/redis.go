package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "jobscout:quota:"

// reserveScript checks and increments in one round trip so concurrent processes
// sharing the budget cannot overshoot the ceiling.
var reserveScript = redis.NewScript(`
local used = tonumber(redis.call('GET', KEYS[1]) or '0')
local count = tonumber(ARGV[1])
local ceiling = tonumber(ARGV[2])
if used + count > ceiling then
  return {0, used}
end
used = redis.call('INCRBY', KEYS[1], count)
redis.call('EXPIRE', KEYS[1], ARGV[3])
return {1, used}
`)

// RedisCounter stores usage under one key per period
type RedisCounter struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCounter creates a counter whose keys expire after ttl (default 40 days)
func NewRedisCounter(client *redis.Client, ttl time.Duration) *RedisCounter {
	if ttl <= 0 {
		ttl = 40 * 24 * time.Hour
	}
	return &RedisCounter{client: client, ttl: ttl}
}

func (c *RedisCounter) Reserve(ctx context.Context, period string, count, ceiling int) (bool, int, error) {
	res, err := reserveScript.Run(ctx, c.client, []string{redisKeyPrefix + period},
		count, ceiling, int64(c.ttl.Seconds())).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("redis quota script: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("redis quota script: unexpected reply %v", res)
	}
	return res[0] == 1, int(res[1]), nil
}

func (c *RedisCounter) Usage(ctx context.Context, period string) (int, error) {
	used, err := c.client.Get(ctx, redisKeyPrefix+period).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return used, err
}
