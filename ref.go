package cachex

import (
	"sync"
)

// RefKey identifies one entry in a RefRegistry: the identity of the
// constructing function, the fingerprint of its arguments, and an optional
// disambiguation token for callers whose fingerprints coincide.
type RefKey struct {
	Function    string
	Fingerprint string
	Token       string
}

// refEntry serializes construction for a single key. The entry mutex is held
// only while the factory runs, so construction of unrelated keys never
// blocks.
type refEntry struct {
	mu    sync.Mutex
	done  bool
	value any
}

// RefRegistry is a process-wide table of singleton objects keyed by RefKey.
// Each key's factory runs at most once successfully, even under concurrent
// first-time callers; every caller then shares the identical object. There
// is no eviction: entries live until the process exits or Reset is called.
//
// Registry-held objects are shared by reference. The registry does not lock
// around their use after construction; concurrent safety of the object
// itself is the object's own concern.
type RefRegistry struct {
	mu      sync.Mutex
	entries map[RefKey]*refEntry
}

// NewRefRegistry creates an empty registry. Most callers use the process
// default; standalone registries exist for test isolation.
func NewRefRegistry() *RefRegistry {
	return &RefRegistry{entries: map[RefKey]*refEntry{}}
}

var defaultRegistry = NewRefRegistry()

// DefaultRegistry returns the process-wide registry that Value and Reference
// resolve through unless configured otherwise.
func DefaultRegistry() *RefRegistry {
	return defaultRegistry
}

// GetOrCreate returns the object held under key, constructing it with
// factory if absent. Concurrent first-time callers for the same key are
// serialized so exactly one factory call succeeds; all of them observe the
// single resulting object. A factory error propagates to its caller and
// leaves the slot unconstructed, so a later call retries.
func (r *RefRegistry) GetOrCreate(key RefKey, factory func() (any, error)) (any, error) {
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		e = &refEntry{}
		r.entries[key] = e
	}
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return e.value, nil
	}

	v, err := factory()
	if err != nil {
		return nil, err
	}
	e.value = v
	e.done = true
	return v, nil
}

// References returns every object currently held by the registry. Its main
// use is shutdown: iterate the references and finalize the ones that hold
// resources, typically by asserting io.Closer.
func (r *RefRegistry) References() []any {
	r.mu.Lock()
	entries := make([]*refEntry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	refs := make([]any, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if e.done {
			refs = append(refs, e.value)
		}
		e.mu.Unlock()
	}
	return refs
}

// Reset drops every entry. Intended for test isolation. Decorations that
// already resolved an object keep using it; only future first-time
// resolutions see the empty registry.
func (r *RefRegistry) Reset() {
	r.mu.Lock()
	r.entries = map[RefKey]*refEntry{}
	r.mu.Unlock()
}

// References returns every object held by the default registry.
func References() []any {
	return defaultRegistry.References()
}

// ResetReferences clears the default registry. Intended for test isolation.
func ResetReferences() {
	defaultRegistry.Reset()
}
