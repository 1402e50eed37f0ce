package cachex

import (
	"fmt"
	"reflect"
	"runtime"

	"github.com/raid-newvicx/cachex/fingerprint"
)

// KeySeparator delimits the namespace, function identity and fingerprint
// segments of a cache key.
const KeySeparator = "::"

// DefaultNamespace is the key namespace used when none is configured.
const DefaultNamespace = "cachex"

// functionKey derives a stable identity for a function: its fully qualified
// name (package path plus name), which is the runtime analog of a module +
// qualified name pair. The identity is stable across calls within a build
// and distinct top-level functions get distinct names. Closure symbols are
// a compiler artifact: whether two closures built by the same helper share
// one depends on inlining, so code that needs a dependable identity for a
// closure supplies WithKeyName instead of relying on the symbol.
func functionKey(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		panic(fmt.Sprintf("cachex: expected a function, got %T", fn))
	}
	if f := runtime.FuncForPC(v.Pointer()); f != nil {
		return f.Name()
	}
	return fmt.Sprintf("func@%#x", v.Pointer())
}

// cacheKey combines namespace, function identity and fingerprint into the
// lookup key handed to storage.
func cacheKey(namespace, function string, fp fingerprint.Digest) string {
	return namespace + KeySeparator + function + KeySeparator + fp.Hex()
}
