package storage

import (
	"context"
	"time"

	"github.com/viccon/sturdyc"
)

// SturdycConfig holds the settings for the sturdyc-backed store. Sturdyc
// provides a sharded, capacity-bounded in-process cache; the per-entry TTL
// requested by callers is enforced with stored expiry metadata, while the
// client-level TTL below caps how long any entry can survive eviction.
type SturdycConfig struct {
	// Capacity defines the maximum number of entries the cache can store.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of cache shards for concurrent
	// access. Higher values improve concurrency but increase memory
	// overhead. Must be greater than 0.
	NumShards int

	// TTL is the client-level time-to-live after which sturdyc itself
	// drops an entry. Must be greater than 0 and should be at least as
	// large as the longest expiry the caller will request.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often the cache checks for expired
	// entries. Zero uses the sturdyc default.
	EvictionInterval time.Duration
}

// DefaultSturdycConfig returns a config with sensible defaults.
func DefaultSturdycConfig() SturdycConfig {
	return SturdycConfig{
		Capacity:           10000,
		NumShards:          256,
		TTL:                time.Hour,
		EvictionPercentage: 10,
	}
}

// Validate checks whether the configuration values are valid.
func (c SturdycConfig) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}
	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}
	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}
	return nil
}

func (c SturdycConfig) options() []sturdyc.Option {
	var options []sturdyc.Option
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// SturdycStorage adapts a sturdyc client to the Storage contract.
type SturdycStorage struct {
	client *sturdyc.Client[[]byte]
}

var _ Storage = (*SturdycStorage)(nil)

// NewSturdycStorage creates a sturdyc-backed store with the provided
// configuration.
func NewSturdycStorage(cfg SturdycConfig) (*SturdycStorage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[[]byte](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.options()...,
	)
	return &SturdycStorage{client: client}, nil
}

func (s *SturdycStorage) Get(_ context.Context, key string) ([]byte, bool, error) {
	raw, ok := s.client.Get(key)
	if !ok {
		return nil, false, nil
	}
	e, err := decodeEnvelope(raw)
	if err != nil {
		s.client.Delete(key)
		return nil, false, nil
	}
	if e.expired() {
		s.client.Delete(key)
		return nil, false, nil
	}
	return e.Data, true, nil
}

func (s *SturdycStorage) Set(_ context.Context, key string, value []byte, expiresIn time.Duration) error {
	raw, err := newEnvelope(value, expiresIn).encode()
	if err != nil {
		return err
	}
	s.client.Set(key, raw)
	return nil
}

func (s *SturdycStorage) Delete(_ context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

func (s *SturdycStorage) DeleteAll(_ context.Context) error {
	for _, key := range s.client.ScanKeys() {
		s.client.Delete(key)
	}
	return nil
}

// SturdycFactory returns a factory producing a sturdyc-backed store with the
// given configuration.
func SturdycFactory(cfg SturdycConfig) Factory {
	return Factory{
		ID: "storage.SturdycFactory",
		New: func() (Storage, error) {
			return NewSturdycStorage(cfg)
		},
	}
}
