// Package cachex caches function results behind the cache-aside pattern:
// wrap a computation, derive a stable key from its arguments, consult a
// pluggable store, and on a miss execute the computation and populate the
// store.
//
// # Overview
//
// Two wrappers cover the two caching disciplines:
//
//   - Value: caches serialized copies of a function's return value. Every
//     caller gets an independent copy; entries can expire.
//   - Reference: caches a shared reference to a constructed object, exactly
//     once per distinct argument set, for the lifetime of the process.
//
// Both wrappers return a function with the same signature as their input,
// so caching stays transparent at call sites:
//
//	fetchUser := cachex.Value(loadUser,
//		cachex.WithExpiresIn(5*time.Minute),
//	)
//	u1, err := fetchUser(ctx, "user-123") // executes loadUser
//	u2, err := fetchUser(ctx, "user-123") // served from cache, fresh copy
//
// # Keys and fingerprinting
//
// A cache key is namespace::function::fingerprint. The function segment is
// the wrapped function's fully qualified name; the fingerprint is a SHA-256
// digest of the call's effective arguments, computed by the fingerprint
// package. Arguments of types the canonical encoding does not understand
// need a type encoder:
//
//	fetchReport := cachex.Value(buildReport,
//		cachex.EncodeType(func(q Query) (any, error) { return q.String(), nil }),
//	)
//
// Arguments that must not participate in the key (loggers, connections) are
// excluded by position:
//
//	fetch := cachex.Value(load, cachex.WithIgnoredArgs(1))
//
// # Storage backends
//
// The storage package ships in-process memory (the default), sturdyc, file,
// Redis, Memcached and SQL backends, all behind one interface. Backends are
// configured per decoration through a factory:
//
//	fetch := cachex.Value(load,
//		cachex.WithStorageFactory(storage.RedisFactory("redis://localhost:6379/0", "app")),
//		cachex.WithFactoryKey("app-redis"),
//	)
//
// Factories resolve through the reference registry, so a backend and its
// connection handles are constructed at most once per factory identity.
// Factories produced by the same helper carry the same identity and share a
// registry entry; the first configuration to resolve wins unless distinct
// factory keys are supplied. See WithFactoryKey. Network-backed stores
// expose Close, and References hands back every constructed object so a
// process can finalize them at shutdown.
//
// # Concurrency
//
// By default concurrent calls with the same key may each execute the
// computation, trading duplicate work for latency. WithAllowConcurrent(false)
// serializes the miss path per key: one caller computes and stores, the rest
// observe its write.
//
// # Failure policy
//
// The cache is never allowed to become a point of failure for reads: backend
// get errors degrade to a recomputation, corrupt entries are discarded and
// recomputed, and write or serialization failures are logged while the
// computed result is still returned. Errors from the wrapped computation
// itself propagate unchanged and are never cached.
//
// # Trust boundary
//
// Cached payloads are serialized with msgpack and are not hardened against
// hostile input. Point the cache only at storage that trusted code writes.
package cachex
