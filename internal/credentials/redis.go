package credentials

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	pendingKey = "smarthome:authorization"

	fieldRedirectURI = "redirect_uri"
	fieldState       = "state"
	fieldCode        = "code"
)

// RedisStore implements the Store interface using a single Redis hash
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// CheckHealth verifies Redis connectivity
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// SavePending replaces the pending authorization hash atomically
func (s *RedisStore) SavePending(ctx context.Context, pending *PendingAuthorization) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, pendingKey)
		if pending != nil {
			pipe.HSet(ctx, pendingKey,
				fieldRedirectURI, pending.RedirectURI,
				fieldState, pending.State,
				fieldCode, pending.Code,
			)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving pending authorization: %w", err)
	}
	return nil
}

// GetPending retrieves the pending authorization hash
func (s *RedisStore) GetPending(ctx context.Context) (*PendingAuthorization, error) {
	fields, err := s.client.HGetAll(ctx, pendingKey).Result()
	if err != nil {
		return nil, fmt.Errorf("getting pending authorization: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	return &PendingAuthorization{
		RedirectURI: fields[fieldRedirectURI],
		State:       fields[fieldState],
		Code:        fields[fieldCode],
	}, nil
}
