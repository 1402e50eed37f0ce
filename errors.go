package cachex

import "fmt"

// SerializationError reports a computed result that could not be serialized
// for storage. The result is still returned to the caller; only the cache
// write is skipped.
type SerializationError struct {
	Function string
	Err      error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf(
		"cachex: cannot serialize the return value of %q for caching. "+
			"The value was returned to the caller but not cached. Convert the "+
			"return value to a serializable type, or cache the object by "+
			"reference instead: %v",
		e.Function, e.Err,
	)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// StorageError wraps a backend failure with the operation and key it
// occurred on.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("cachex: storage %s failed for %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
