// Package storage defines the backend contract for cachex and ships the
// built-in backends: in-process memory, sturdyc, file, Redis, Memcached and
// SQL. Backends only ever see opaque byte payloads; serialization of the
// cached values is owned by the caller.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Storage is the capability contract every backend implements. All methods
// take a context so a single implementation serves both blocking and
// cooperative callers. Implementations must be safe for concurrent use; the
// core never assumes backend instances are cheap to construct.
type Storage interface {
	// Get returns the stored bytes for key. A missing or expired entry is
	// reported as ok == false with a nil error, never as an error.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key. When expiresIn is greater than zero the
	// entry must become unreadable once that duration elapses, either via
	// the backend's native TTL support or via stored expiry metadata
	// checked on read. A non-positive expiresIn means the entry never
	// expires.
	Set(ctx context.Context, key string, value []byte, expiresIn time.Duration) error

	// Delete removes the entry for key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error

	// DeleteAll removes every entry this store owns.
	DeleteAll(ctx context.Context) error
}

// Factory constructs a Storage. Factories are resolved through the cachex
// reference registry under their ID, so each distinct identity is
// constructed at most once per process. The helpers in this package stamp
// one constant ID per helper: every factory a helper returns carries the
// same ID and therefore shares one registry entry regardless of
// configuration. The first to resolve wins and later configurations are
// silently ignored; a factory key on the decoration separates them.
type Factory struct {
	// ID names the factory's origin for registry memoization. When empty,
	// the New function itself is used as the identity.
	ID string

	// New constructs the backend. A nil New marks the Factory as unset.
	New func() (Storage, error)
}

// envelope carries the payload plus expiry metadata for backends without
// native per-entry TTL support.
type envelope struct {
	ExpiresAt time.Time `msgpack:"exp"`
	Data      []byte    `msgpack:"data"`
}

func newEnvelope(data []byte, expiresIn time.Duration) envelope {
	e := envelope{Data: data}
	if expiresIn > 0 {
		e.ExpiresAt = time.Now().Add(expiresIn)
	}
	return e
}

func (e envelope) expired() bool {
	return !e.ExpiresAt.IsZero() && !time.Now().Before(e.ExpiresAt)
}

func (e envelope) encode() ([]byte, error) {
	b, err := msgpack.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("storage: encode envelope: %w", err)
	}
	return b, nil
}

func decodeEnvelope(b []byte) (envelope, error) {
	var e envelope
	if err := msgpack.Unmarshal(b, &e); err != nil {
		return envelope{}, fmt.Errorf("storage: decode envelope: %w", err)
	}
	return e, nil
}
