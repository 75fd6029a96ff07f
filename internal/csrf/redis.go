package csrf

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenPrefix = "smarthome:csrf:"

// RedisStore keeps tokens as expiring Redis keys
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed token store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// SaveToken stores token with a TTL of expiresIn
func (s *RedisStore) SaveToken(ctx context.Context, token string, expiresIn time.Duration) error {
	if token == "" {
		return ErrInvalidToken
	}
	if err := s.client.Set(ctx, tokenPrefix+token, "1", expiresIn).Err(); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	return nil
}

// ConsumeToken atomically reads and deletes the token key.
// Redis drops keys at their TTL, so an expired token reads as never issued.
func (s *RedisStore) ConsumeToken(ctx context.Context, token string) error {
	err := s.client.GetDel(ctx, tokenPrefix+token).Err()
	if errors.Is(err, redis.Nil) {
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("consuming token: %w", err)
	}
	return nil
}

// CheckHealth verifies Redis connectivity
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
