package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix is the virtual key namespace used when none is
// configured.
const DefaultRedisPrefix = "cachex"

// RedisStorage stores entries in Redis under a key prefix, relying on
// Redis's native TTL support for expiry.
type RedisStorage struct {
	client    redis.UniversalClient
	keyPrefix string
}

var (
	_ Storage   = (*RedisStorage)(nil)
	_ io.Closer = (*RedisStorage)(nil)
)

// NewRedisStorage wraps an existing Redis client. All keys are namespaced
// as "prefix:key" so several stores can share one database.
func NewRedisStorage(client redis.UniversalClient, keyPrefix string) *RedisStorage {
	if keyPrefix == "" {
		keyPrefix = DefaultRedisPrefix
	}
	return &RedisStorage{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStorage) makeKey(key string) string {
	return s.keyPrefix + ":" + key
}

func (s *RedisStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.makeKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("storage: redis get: %w", err)
	}
	return data, true, nil
}

func (s *RedisStorage) Set(ctx context.Context, key string, value []byte, expiresIn time.Duration) error {
	if expiresIn < 0 {
		expiresIn = 0
	}
	if err := s.client.Set(ctx, s.makeKey(key), value, expiresIn).Err(); err != nil {
		return fmt.Errorf("storage: redis set: %w", err)
	}
	return nil
}

func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.makeKey(key)).Err(); err != nil {
		return fmt.Errorf("storage: redis delete: %w", err)
	}
	return nil
}

// DeleteAll removes every key in the store's namespace, scanning in batches
// and unlinking so large namespaces do not block the server.
func (s *RedisStorage) DeleteAll(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.keyPrefix+":*", 100).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := s.client.Unlink(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("storage: redis unlink: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("storage: redis scan: %w", err)
	}
	if len(batch) > 0 {
		if err := s.client.Unlink(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("storage: redis unlink: %w", err)
		}
	}
	return nil
}

// Close releases the underlying client's connections. Stores built by
// RedisFactory own their client; callers who injected a shared client
// through NewRedisStorage should close that client themselves instead.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}

// RedisFactory returns a factory that connects to the Redis instance
// described by url (for example "redis://localhost:6379/0") and verifies the
// connection with a ping before handing the store out.
func RedisFactory(url, keyPrefix string) Factory {
	return Factory{
		ID: "storage.RedisFactory",
		New: func() (Storage, error) {
			opt, err := redis.ParseURL(url)
			if err != nil {
				return nil, fmt.Errorf("storage: parse redis url: %w", err)
			}
			client := redis.NewClient(opt)
			if err := client.Ping(context.Background()).Err(); err != nil {
				return nil, fmt.Errorf("storage: connect to redis: %w", err)
			}
			return NewRedisStorage(client, keyPrefix), nil
		},
	}
}
