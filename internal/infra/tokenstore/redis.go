package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sigtoken:"

// RedisStore keeps consumption-tracking entries in redis so single-use
// enforcement survives process restarts and spans replicas.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Put(ctx context.Context, token, partyID string, ttl time.Duration) error {
	return s.client.Set(ctx, keyPrefix+token, partyID, ttl).Err()
}

func (s *RedisStore) Exists(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Consume uses GETDEL so the check and the delete are one atomic step; a
// concurrent submission racing on the same token sees the key gone.
func (s *RedisStore) Consume(ctx context.Context, token string) (bool, error) {
	_, err := s.client.GetDel(ctx, keyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, keyPrefix+token).Err()
}
