package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"math"
	"reflect"
	"sort"
	"strings"
)

// Size is the length of a fingerprint digest in bytes.
const Size = sha256.Size

// IgnoreMarker is the leading marker on an argument name that excludes the
// argument from fingerprinting entirely.
const IgnoreMarker = "_"

// Digest is a fixed-size, collision-resistant fingerprint of a call's
// effective arguments. Equal argument sets (after exclusion and type
// encoding) always produce equal digests.
type Digest [Size]byte

// Hex returns the lowercase hex encoding of the digest.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// Encoder converts a value of a registered type into a representation the
// built-in canonical encoding understands (bool, integer, float, string,
// bytes, or slices/maps of those, recursively). Encoders must be
// deterministic across runs; the whole cache depends on it.
type Encoder func(v any) (any, error)

// Arg is a single named invocation argument. Positional arguments get
// synthesized names by the caller.
type Arg struct {
	Name  string
	Value any
}

// DefaultIgnore reports whether an argument is excluded from fingerprinting
// by the naming convention: a name beginning with an underscore.
func DefaultIgnore(a Arg) bool {
	return strings.HasPrefix(a.Name, IgnoreMarker)
}

// UnsupportedTypeError is returned when a value's runtime type has no
// registered encoder and no built-in canonical encoding.
type UnsupportedTypeError struct {
	Type reflect.Type
	// Err is the underlying failure when a registered encoder errored.
	Err error
}

func (e *UnsupportedTypeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fingerprint: type encoder for %s failed: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("fingerprint: cannot encode value of type %s", e.Type)
}

func (e *UnsupportedTypeError) Unwrap() error { return e.Err }

// ArgumentError wraps an encoding failure with the offending argument's name
// so callers can tell which input to fix, exclude, or register an encoder for.
type ArgumentError struct {
	Name string
	Type reflect.Type
	Err  error
}

func (e *ArgumentError) Error() string {
	name := e.Name
	if name == "" {
		name = "(unnamed)"
	}
	return fmt.Sprintf(
		"fingerprint: cannot encode argument %q (of type %s). "+
			"Exclude the argument from fingerprinting or register a type encoder "+
			"that converts it into an encodable value: %v",
		name, e.Type, e.Err,
	)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// Hasher converts invocation arguments into deterministic digests. The
// encoder registry is fixed at construction; a Hasher is safe for concurrent
// use.
type Hasher struct {
	encoders map[reflect.Type]Encoder
}

// New creates a Hasher with the given type encoder registry. Encoders are
// matched by exact runtime type, not structurally. The map is copied; nil is
// fine.
func New(encoders map[reflect.Type]Encoder) *Hasher {
	m := make(map[reflect.Type]Encoder, len(encoders))
	for t, enc := range encoders {
		m[t] = enc
	}
	return &Hasher{encoders: m}
}

// Fingerprint computes the digest for a call to the function identified by
// identity with the given arguments. Arguments matched by the ignore
// predicate (DefaultIgnore when nil) are excluded. Remaining arguments are
// hashed as sorted (name, value) pairs, so the order in which named
// arguments are supplied does not matter.
func (h *Hasher) Fingerprint(identity string, args []Arg, ignore func(Arg) bool) (Digest, error) {
	if ignore == nil {
		ignore = DefaultIgnore
	}

	type pair struct {
		name   string
		digest []byte
	}
	pairs := make([]pair, 0, len(args))
	for _, a := range args {
		if ignore(a) {
			continue
		}
		d, err := h.digestValue(a.Value)
		if err != nil {
			return Digest{}, &ArgumentError{Name: a.Name, Type: reflect.TypeOf(a.Value), Err: err}
		}
		pairs = append(pairs, pair{name: a.Name, digest: d})
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].name < pairs[j].name })

	hh := sha256.New()
	writeToken(hh, "func", []byte(identity))
	for _, p := range pairs {
		writeToken(hh, "arg", []byte(p.name))
		hh.Write(p.digest)
	}

	var out Digest
	copy(out[:], hh.Sum(nil))
	return out, nil
}

// digestValue hashes a single value into its own digest. Composite values
// hash their children into sub-digests; the fixed digest width keeps element
// boundaries unambiguous, which makes the overall encoding injective.
func (h *Hasher) digestValue(v any) ([]byte, error) {
	hh := sha256.New()
	if err := h.update(hh, v, map[uintptr]struct{}{}); err != nil {
		return nil, err
	}
	return hh.Sum(nil), nil
}

// writeToken writes a type-prefixed, length-delimited token. The length
// prefix prevents adjacent tokens from colliding across boundaries.
func writeToken(w hash.Hash, tname string, payload []byte) {
	w.Write([]byte(tname))
	w.Write([]byte{':'})
	var size [8]byte
	binary.LittleEndian.PutUint64(size[:], uint64(len(payload)))
	w.Write(size[:])
	w.Write(payload)
}

func (h *Hasher) update(w hash.Hash, v any, seen map[uintptr]struct{}) error {
	if v == nil {
		writeToken(w, "nil", nil)
		return nil
	}

	rt := reflect.TypeOf(v)

	if enc, ok := h.encoders[rt]; ok {
		encoded, err := enc(v)
		if err != nil {
			return &UnsupportedTypeError{Type: rt, Err: err}
		}
		if encoded != nil && reflect.TypeOf(encoded) == rt {
			return &UnsupportedTypeError{Type: rt, Err: fmt.Errorf("encoder returned its own input type")}
		}
		writeToken(w, "encoded", []byte(rt.String()))
		return h.update(w, encoded, seen)
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Bool:
		b := []byte{0}
		if rv.Bool() {
			b[0] = 1
		}
		writeToken(w, rt.String(), b)
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(rv.Int()))
		writeToken(w, rt.String(), b[:])
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], rv.Uint())
		writeToken(w, rt.String(), b[:])
		return nil

	case reflect.Float32, reflect.Float64:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(rv.Float()))
		writeToken(w, rt.String(), b[:])
		return nil

	case reflect.String:
		writeToken(w, rt.String(), []byte(rv.String()))
		return nil

	case reflect.Slice:
		if rv.IsNil() {
			writeToken(w, "nil", nil)
			return nil
		}
		if rt.Elem().Kind() == reflect.Uint8 {
			writeToken(w, rt.String(), rv.Bytes())
			return nil
		}
		ptr := rv.Pointer()
		if _, cycle := seen[ptr]; cycle {
			writeToken(w, "cycle", nil)
			return nil
		}
		seen[ptr] = struct{}{}
		defer delete(seen, ptr)
		return h.updateSequence(w, rt, rv, seen)

	case reflect.Array:
		if rt.Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			for i := 0; i < rv.Len(); i++ {
				b[i] = byte(rv.Index(i).Uint())
			}
			writeToken(w, rt.String(), b)
			return nil
		}
		return h.updateSequence(w, rt, rv, seen)

	case reflect.Map:
		if rv.IsNil() {
			writeToken(w, "nil", nil)
			return nil
		}
		ptr := rv.Pointer()
		if _, cycle := seen[ptr]; cycle {
			writeToken(w, "cycle", nil)
			return nil
		}
		seen[ptr] = struct{}{}
		defer delete(seen, ptr)

		// Unordered container: digest each entry independently, then sort
		// the entry digests so map iteration order cannot leak into the key.
		entries := make([][]byte, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			pair := sha256.New()
			if err := h.update(pair, iter.Key().Interface(), seen); err != nil {
				return err
			}
			if err := h.update(pair, iter.Value().Interface(), seen); err != nil {
				return err
			}
			entries = append(entries, pair.Sum(nil))
		}
		sort.Slice(entries, func(i, j int) bool { return bytes.Compare(entries[i], entries[j]) < 0 })

		sub := sha256.New()
		for _, e := range entries {
			sub.Write(e)
		}
		writeToken(w, rt.String(), sub.Sum(nil))
		return nil

	case reflect.Ptr:
		if rv.IsNil() {
			writeToken(w, "nil", nil)
			return nil
		}
		ptr := rv.Pointer()
		if _, cycle := seen[ptr]; cycle {
			writeToken(w, "cycle", nil)
			return nil
		}
		seen[ptr] = struct{}{}
		defer delete(seen, ptr)
		return h.update(w, rv.Elem().Interface(), seen)

	case reflect.Interface:
		if rv.IsNil() {
			writeToken(w, "nil", nil)
			return nil
		}
		return h.update(w, rv.Elem().Interface(), seen)

	default:
		// Structs, funcs, chans and the rest fail fast: silently producing
		// an unstable key would corrupt every lookup that follows.
		return &UnsupportedTypeError{Type: rt}
	}
}

// updateSequence hashes an ordered container. Element order is part of the
// digest.
func (h *Hasher) updateSequence(w hash.Hash, rt reflect.Type, rv reflect.Value, seen map[uintptr]struct{}) error {
	sub := sha256.New()
	for i := 0; i < rv.Len(); i++ {
		if err := h.update(sub, rv.Index(i).Interface(), seen); err != nil {
			return err
		}
	}
	writeToken(w, rt.String(), sub.Sum(nil))
	return nil
}
