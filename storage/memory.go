package storage

import (
	"bytes"
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryStorage is an in-process key/value store. Expired entries are
// reaped lazily: the first Get after the deadline removes the entry and
// reports a miss.
type MemoryStorage struct {
	mem *xsync.MapOf[string, envelope]
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-process store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{mem: xsync.NewMapOf[string, envelope]()}
}

func (s *MemoryStorage) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := s.mem.Load(key)
	if !ok {
		return nil, false, nil
	}
	if e.expired() {
		s.mem.Delete(key)
		return nil, false, nil
	}
	// Copy so callers mutating the returned bytes cannot corrupt the
	// stored entry.
	return bytes.Clone(e.Data), true, nil
}

func (s *MemoryStorage) Set(_ context.Context, key string, value []byte, expiresIn time.Duration) error {
	s.mem.Store(key, newEnvelope(value, expiresIn))
	return nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mem.Delete(key)
	return nil
}

func (s *MemoryStorage) DeleteAll(_ context.Context) error {
	s.mem.Clear()
	return nil
}

// MemoryFactory returns a factory producing a fresh in-process store. This
// is the default backend for a decoration that does not configure one.
func MemoryFactory() Factory {
	return Factory{
		ID: "storage.MemoryFactory",
		New: func() (Storage, error) {
			return NewMemoryStorage(), nil
		},
	}
}
