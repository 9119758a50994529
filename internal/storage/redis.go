package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/rocketshoes-cart/internal/cart"
	pkgredis "github.com/angelmondragon/rocketshoes-cart/pkg/redis"
)

type redisClient interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Ping(ctx context.Context) error
	Key(parts ...string) string
}

// RedisStore keeps snapshots under rs:<key>, optionally expiring them.
type RedisStore struct {
	client redisClient
	ttl    time.Duration
}

func NewRedisStore(client *pkgredis.Client, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.client.Get(ctx, s.client.Key(key))
	if errors.Is(err, pkgredis.ErrNil) {
		return nil, cart.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %q from redis: %w", key, err)
	}
	return raw, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, payload []byte) error {
	if err := s.client.Set(ctx, s.client.Key(key), payload, s.ttl); err != nil {
		return fmt.Errorf("writing snapshot %q to redis: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}
