package cachex

import (
	"context"
	"fmt"
	"reflect"

	"github.com/raid-newvicx/cachex/fingerprint"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Value wraps fn with cache-aside semantics and returns a function with the
// identical signature. fn must return (V, error); a leading context.Context
// parameter is recognized, passed through to storage and the computation,
// and excluded from fingerprinting. The same wrapper serves both threaded
// and cooperative callers: every blocking point takes the call's context.
//
// Each call fingerprints the arguments, consults the configured backend, and
// on a hit returns an independently deserialized copy of the stored value.
// On a miss the computation runs, its result is serialized and stored, and
// the original result is returned. Errors from fn propagate unchanged and
// nothing is written for them.
//
// Degradation policy: a backend read failure is treated as a miss, a corrupt
// entry is discarded and recomputed, and a failed write or unserializable
// result is logged while the computed value is still returned. Only two
// failures surface as errors from the wrapper itself: an argument that
// cannot be fingerprinted, and a storage factory that fails before any
// cached result can exist.
//
// Value panics at wrap time when fn is not a function returning (V, error);
// that is a programming error, not a runtime condition.
func Value[F any](fn F, opts ...Option) F {
	cfg := newConfig(opts)

	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()
	if fnType.Kind() != reflect.Func {
		panic(fmt.Sprintf("cachex: Value requires a function, got %T", fn))
	}
	if fnType.NumOut() != 2 || fnType.Out(1) != errorType {
		panic(fmt.Sprintf("cachex: Value requires fn to return (V, error), got %s", fnType))
	}

	identity := cfg.keyName
	if identity == "" {
		identity = functionKey(fn)
	}
	hasher := fingerprint.New(cfg.typeEncoders)
	hasCtx := fnType.NumIn() > 0 && fnType.In(0) == contextType
	valueType := fnType.Out(0)
	resolver := newStorageResolver(cfg)

	wrapper := reflect.MakeFunc(fnType, func(in []reflect.Value) []reflect.Value {
		ctx := context.Background()
		if hasCtx && !in[0].IsNil() {
			ctx = in[0].Interface().(context.Context)
		}

		fail := func(err error) []reflect.Value {
			errVal := reflect.New(errorType).Elem()
			errVal.Set(reflect.ValueOf(err))
			return []reflect.Value{reflect.Zero(valueType), errVal}
		}
		call := func() []reflect.Value {
			if fnType.IsVariadic() {
				return fnVal.CallSlice(in)
			}
			return fnVal.Call(in)
		}

		fp, err := hasher.Fingerprint(identity, collectArgs(cfg, hasCtx, in), cfg.ignore)
		if err != nil {
			return fail(err)
		}
		key := cacheKey(cfg.namespace, identity, fp)

		store, err := resolver.resolve()
		if err != nil {
			return fail(err)
		}

		if !cfg.allowConcurrent {
			mu := globalLocks.get(key)
			mu.Lock()
			defer mu.Unlock()
		}

		data, ok, err := store.Get(ctx, key)
		if err != nil {
			storageErrors.WithLabelValues("get").Inc()
			cfg.logger.Warn("cachex: storage get failed, treating as miss",
				"function", identity, "error", &StorageError{Op: "get", Key: key, Err: err})
			ok = false
		}
		if ok {
			out := reflect.New(valueType)
			if err := cfg.codec.Unmarshal(data, out.Interface()); err != nil {
				decodeErrors.Inc()
				cfg.logger.Warn("cachex: cached entry failed to deserialize, recomputing",
					"function", identity, "error", err)
				if err := store.Delete(ctx, key); err != nil {
					cfg.logger.Debug("cachex: could not discard corrupt entry",
						"function", identity, "error", err)
				}
			} else {
				cacheHits.Inc()
				cfg.logger.Debug("cachex: cache hit", "function", identity)
				return []reflect.Value{out.Elem(), reflect.Zero(errorType)}
			}
		}

		cacheMisses.Inc()
		cfg.logger.Debug("cachex: cache miss", "function", identity)

		results := call()
		if !results[1].IsNil() {
			return results
		}

		payload, err := cfg.codec.Marshal(results[0].Interface())
		if err != nil {
			serializationErrors.Inc()
			cfg.logger.Warn("cachex: skipping cache write",
				"error", &SerializationError{Function: identity, Err: err})
			return results
		}
		if err := store.Set(ctx, key, payload, cfg.expiresIn); err != nil {
			storageErrors.WithLabelValues("set").Inc()
			cfg.logger.Warn("cachex: storage set failed, returning uncached result",
				"function", identity, "error", &StorageError{Op: "set", Key: key, Err: err})
		}
		return results
	})

	return wrapper.Interface().(F)
}

// collectArgs turns the reflected inputs into named fingerprint arguments.
// Positional names are synthesized; positions the decoration ignores get the
// underscore marker so the default exclusion predicate drops them.
func collectArgs(cfg config, hasCtx bool, in []reflect.Value) []fingerprint.Arg {
	args := make([]fingerprint.Arg, 0, len(in))
	pos := 0
	for i, v := range in {
		if hasCtx && i == 0 {
			continue
		}
		name := fmt.Sprintf("arg%d", pos)
		if _, skip := cfg.ignoredArgs[pos]; skip {
			name = fingerprint.IgnoreMarker + name
		}
		args = append(args, fingerprint.Arg{Name: name, Value: v.Interface()})
		pos++
	}
	return args
}
