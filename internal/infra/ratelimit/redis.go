package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"signet/internal/domain"

	"github.com/redis/go-redis/v9"
)

type redisLimiter struct {
	client *redis.Client
	now    func() time.Time
}

// Counter and expiry are set in one script so a crash between INCR and
// PEXPIRE cannot leave an immortal key.
var incrWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

func NewRedisLimiter(client *redis.Client, now func() time.Time) (domain.RateLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if now == nil {
		now = time.Now
	}
	return &redisLimiter{client: client, now: now}, nil
}

func (r *redisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (domain.RateLimitDecision, error) {
	decision := domain.RateLimitDecision{Limit: limit}
	if limit <= 0 {
		decision.Allowed = true
		decision.Remaining = limit
		return decision, nil
	}
	windowMillis := window.Milliseconds()
	if windowMillis <= 0 {
		windowMillis = 1000
	}
	reply, err := incrWindowScript.Run(ctx, r.client, []string{key}, windowMillis).Int64Slice()
	if err != nil {
		return domain.RateLimitDecision{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(reply) != 2 {
		return domain.RateLimitDecision{}, fmt.Errorf("rate limit script returned %d values", len(reply))
	}
	count, ttlMillis := reply[0], reply[1]

	decision.Allowed = count <= int64(limit)
	if remaining := limit - int(count); remaining > 0 {
		decision.Remaining = remaining
	}
	decision.ResetAt = r.now()
	if ttlMillis > 0 {
		decision.ResetAt = decision.ResetAt.Add(time.Duration(ttlMillis) * time.Millisecond)
	}
	return decision, nil
}
