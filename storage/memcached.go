package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// memcached rejects keys longer than 250 bytes or containing control
// characters and whitespace.
const memcachedMaxKeyLen = 250

// MemcachedStorage stores entries in memcached, relying on the server's
// native TTL support for expiry. Memcached TTLs have whole-second
// resolution, so sub-second expirations are rounded up.
type MemcachedStorage struct {
	client *memcache.Client
}

var (
	_ Storage   = (*MemcachedStorage)(nil)
	_ io.Closer = (*MemcachedStorage)(nil)
)

// NewMemcachedStorage wraps an existing memcached client.
func NewMemcachedStorage(client *memcache.Client) *MemcachedStorage {
	return &MemcachedStorage{client: client}
}

// makeKey returns a memcached-safe key. Keys that are too long or contain
// bytes the protocol forbids are replaced by their SHA-256 hex digest.
func makeMemcachedKey(key string) string {
	if len(key) <= memcachedMaxKeyLen && isPlainMemcachedKey(key) {
		return key
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func isPlainMemcachedKey(key string) bool {
	for i := 0; i < len(key); i++ {
		if key[i] <= ' ' || key[i] == 0x7f {
			return false
		}
	}
	return true
}

func (s *MemcachedStorage) Get(_ context.Context, key string) ([]byte, bool, error) {
	item, err := s.client.Get(makeMemcachedKey(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("storage: memcached get: %w", err)
	}
	return item.Value, true, nil
}

func (s *MemcachedStorage) Set(_ context.Context, key string, value []byte, expiresIn time.Duration) error {
	var ttl int32
	if expiresIn > 0 {
		ttl = int32(math.Ceil(expiresIn.Seconds()))
	}
	err := s.client.Set(&memcache.Item{
		Key:        makeMemcachedKey(key),
		Value:      value,
		Expiration: ttl,
	})
	if err != nil {
		return fmt.Errorf("storage: memcached set: %w", err)
	}
	return nil
}

func (s *MemcachedStorage) Delete(_ context.Context, key string) error {
	err := s.client.Delete(makeMemcachedKey(key))
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return fmt.Errorf("storage: memcached delete: %w", err)
	}
	return nil
}

// DeleteAll flushes the entire memcached instance. Memcached has no
// per-namespace purge, so this affects every client of the server.
func (s *MemcachedStorage) DeleteAll(_ context.Context) error {
	if err := s.client.DeleteAll(); err != nil {
		return fmt.Errorf("storage: memcached flush: %w", err)
	}
	return nil
}

// Close releases the client's idle connections.
func (s *MemcachedStorage) Close() error {
	return s.client.Close()
}

// MemcachedFactory returns a factory connecting to the given memcached
// servers.
func MemcachedFactory(servers ...string) Factory {
	return Factory{
		ID: "storage.MemcachedFactory",
		New: func() (Storage, error) {
			client := memcache.New(servers...)
			if err := client.Ping(); err != nil {
				return nil, fmt.Errorf("storage: connect to memcached: %w", err)
			}
			return NewMemcachedStorage(client), nil
		},
	}
}
