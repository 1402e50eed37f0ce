package cachex

import (
	"fmt"
	"reflect"

	"github.com/raid-newvicx/cachex/fingerprint"
)

// Reference wraps a constructor so that its return value is cached by
// reference in the registry: one construction per distinct argument set for
// the lifetime of the process, with every caller sharing the identical
// object. This is the tool for expensive long-lived resources (database
// clients, connection pools, parsed configuration) that must not be
// duplicated and cannot be serialized.
//
// fn may return either T or (T, error). Concurrent first-time calls with the
// same arguments are serialized so the constructor runs exactly once; a
// constructor error propagates and the next call retries. Cached objects are
// shared, not copied: if callers mutate them, that is between the callers
// and the object.
//
// Arguments are fingerprinted exactly as in Value, including type encoders
// and exclusion rules. WithFactoryKey adds a disambiguation token for
// constructors whose fingerprints coincide, such as closures produced by the
// same helper function.
func Reference[F any](fn F, opts ...Option) F {
	cfg := newConfig(opts)

	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()
	if fnType.Kind() != reflect.Func {
		panic(fmt.Sprintf("cachex: Reference requires a function, got %T", fn))
	}
	hasErr := false
	switch fnType.NumOut() {
	case 1:
		if fnType.Out(0) == errorType {
			panic("cachex: Reference requires fn to return a value, not just an error")
		}
	case 2:
		if fnType.Out(1) != errorType {
			panic(fmt.Sprintf("cachex: Reference requires fn to return T or (T, error), got %s", fnType))
		}
		hasErr = true
	default:
		panic(fmt.Sprintf("cachex: Reference requires fn to return T or (T, error), got %s", fnType))
	}

	identity := cfg.keyName
	if identity == "" {
		identity = functionKey(fn)
	}
	hasher := fingerprint.New(cfg.typeEncoders)
	hasCtx := fnType.NumIn() > 0 && fnType.In(0) == contextType
	valueType := fnType.Out(0)

	wrapper := reflect.MakeFunc(fnType, func(in []reflect.Value) []reflect.Value {
		results := func(v any, err error) []reflect.Value {
			out := reflect.Zero(valueType)
			if err == nil {
				out = reflect.ValueOf(v)
				if !out.IsValid() {
					out = reflect.Zero(valueType)
				}
			}
			if !hasErr {
				if err != nil {
					// Without an error return there is no way to surface
					// a fingerprinting failure to the caller.
					panic(err)
				}
				return []reflect.Value{out}
			}
			errVal := reflect.New(errorType).Elem()
			if err != nil {
				errVal.Set(reflect.ValueOf(err))
			}
			return []reflect.Value{out, errVal}
		}

		fp, err := hasher.Fingerprint(identity, collectArgs(cfg, hasCtx, in), cfg.ignore)
		if err != nil {
			return results(nil, err)
		}

		key := RefKey{Function: identity, Fingerprint: fp.Hex(), Token: cfg.factoryKey}
		v, err := cfg.registry.GetOrCreate(key, func() (any, error) {
			var out []reflect.Value
			if fnType.IsVariadic() {
				out = fnVal.CallSlice(in)
			} else {
				out = fnVal.Call(in)
			}
			if hasErr && !out[1].IsNil() {
				return nil, out[1].Interface().(error)
			}
			return out[0].Interface(), nil
		})
		return results(v, err)
	})

	return wrapper.Interface().(F)
}
