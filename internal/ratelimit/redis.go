package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// allowScript prunes, counts and records in one atomic step so two
// racing calls for the same identity cannot both take the last slot.
var allowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '0', ARGV[1])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[2]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// Redis is a sliding-window limiter backed by one sorted set per
// identity, scored by request time. It is the shared-store variant for
// deployments with more than one instance.
type Redis struct {
	client *redis.Client
	window time.Duration
	quota  int
	clock  func() time.Time
}

func NewRedis(addr, password string, db int, window time.Duration, quota int) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Redis{
		client: rdb,
		window: window,
		quota:  quota,
		clock:  time.Now,
	}
}

func (r *Redis) Allow(ctx context.Context, identity string) (bool, error) {
	now := r.clock()
	cutoff := now.Add(-r.window)

	res, err := allowScript.Run(ctx, r.client,
		[]string{redisKeyPrefix + identity},
		cutoff.UnixNano(),
		r.quota,
		now.UnixNano(),
		uuid.NewString(),
		r.window.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
