package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const statePrefix = "oauth2:state:"

// RedisStore implements the Store interface using Redis, so several
// instances of a client can share login state
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed state store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Save stores a state with expiration
func (s *RedisStore) Save(ctx context.Context, st *AuthState, expiresIn time.Duration) error {
	if st == nil || st.State == "" {
		return errors.New("empty state")
	}

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	key := statePrefix + stateKey(st.Provider, st.State)
	if err := s.client.Set(ctx, key, data, expiresIn).Err(); err != nil {
		return fmt.Errorf("storing state: %w", err)
	}
	return nil
}

// Take atomically reads and deletes a state
func (s *RedisStore) Take(ctx context.Context, provider, state string) (*AuthState, error) {
	key := statePrefix + stateKey(provider, state)

	data, err := s.client.GetDel(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading state: %w", err)
	}

	var st AuthState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decoding state: %w", err)
	}
	return &st, nil
}

// CheckHealth verifies Redis connectivity
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
