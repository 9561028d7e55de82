// Package redis provides a Redis-backed bearer token store so several CLI
// hosts can share one signed-in session.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kramabill/billing-krama/internal/ports"
)

// DefaultPrefix namespaces the token keys.
const DefaultPrefix = "billing-krama:token:"

var _ ports.TokenStore = (*TokenStore)(nil)

// TokenStore keeps the token under one key without a TTL; the backend alone
// decides when a token stops being valid.
type TokenStore struct {
	client redis.UniversalClient
	key    string
}

// NewTokenStore creates a store for the given profile key ("default" when empty).
func NewTokenStore(client redis.UniversalClient, key string) *TokenStore {
	return NewTokenStoreWithPrefix(client, DefaultPrefix, key)
}

// NewTokenStoreWithPrefix creates a store with a custom key prefix.
func NewTokenStoreWithPrefix(client redis.UniversalClient, prefix, key string) *TokenStore {
	if key == "" {
		key = "default"
	}
	return &TokenStore{client: client, key: prefix + key}
}

// Key returns the full Redis key.
func (s *TokenStore) Key() string { return s.key }

func (s *TokenStore) Load(ctx context.Context) (string, error) {
	tok, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return tok, nil
}

func (s *TokenStore) Save(ctx context.Context, token string) error {
	if token == "" {
		return s.Clear(ctx)
	}
	if err := s.client.Set(ctx, s.key, token, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *TokenStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
