package cachex

import (
	"fmt"
	"sync"

	"github.com/raid-newvicx/cachex/storage"
)

// storageResolver lazily resolves a decoration's backend through the
// reference registry, guaranteeing the factory runs at most once per
// distinct (factory identity, factory key) pair across the whole process.
//
// The registry key deliberately reuses the reference-cache mechanism: the
// factory's ID is the identity and the fingerprint segment is empty.
// Factories produced by the same helper carry the same ID and therefore
// collapse onto one entry unless a factory key tells them apart; the first
// configuration to resolve wins and is silently reused. Callers that need
// distinct instances supply distinct factory keys.
type storageResolver struct {
	factory    storage.Factory
	factoryID  string
	factoryKey string
	registry   *RefRegistry

	mu      sync.Mutex
	storage storage.Storage
}

func newStorageResolver(cfg config) *storageResolver {
	r := &storageResolver{
		factory:    cfg.storageFactory,
		factoryKey: cfg.factoryKey,
		registry:   cfg.registry,
	}
	if r.factory.New != nil {
		r.factoryID = r.factory.ID
		if r.factoryID == "" {
			// Hand-built factories without an ID fall back to the
			// constructor's symbol name.
			r.factoryID = functionKey(r.factory.New)
		}
	}
	return r
}

// resolve returns the decoration's backend, constructing it on first use. A
// factory failure is returned to the caller and nothing is latched, so the
// next call retries.
func (r *storageResolver) resolve() (storage.Storage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.storage != nil {
		return r.storage, nil
	}

	// No factory configured: the decoration gets its own private in-memory
	// store, which never goes through the registry.
	if r.factory.New == nil {
		r.storage = storage.NewMemoryStorage()
		return r.storage, nil
	}

	key := RefKey{Function: r.factoryID, Token: r.factoryKey}
	v, err := r.registry.GetOrCreate(key, func() (any, error) {
		return r.factory.New()
	})
	if err != nil {
		return nil, err
	}
	s, ok := v.(storage.Storage)
	if !ok {
		return nil, fmt.Errorf("cachex: factory %s resolved to %T, not a storage.Storage", r.factoryID, v)
	}
	r.storage = s
	return s, nil
}
