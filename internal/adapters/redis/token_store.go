// Package redis provides Redis-backed adapters: the operator token store, browser sessions and a pub/sub push channel.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sidesa/desa-admin/internal/ports"
)

var _ ports.TokenStore = (*TokenStore)(nil)

// TokenStore keeps the operator token under a single Redis key.
// A zero TTL stores the token without expiry.
type TokenStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// TokenStoreOptions configures TokenStore.
type TokenStoreOptions struct {
	Prefix string
	Key    string
	TTL    time.Duration
}

// NewTokenStore creates a Redis-backed token store.
func NewTokenStore(client redis.UniversalClient, opts TokenStoreOptions) *TokenStore {
	if opts.Key == "" {
		opts.Key = "token"
	}
	return &TokenStore{
		client: client,
		key:    opts.Prefix + opts.Key,
		ttl:    opts.TTL,
	}
}

func (s *TokenStore) Get(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ports.ErrNoToken
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	if token == "" {
		return "", ports.ErrNoToken
	}
	return token, nil
}

func (s *TokenStore) Set(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("token cannot be empty")
	}
	if err := s.client.Set(ctx, s.key, token, s.ttl).Err(); err != nil {
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
