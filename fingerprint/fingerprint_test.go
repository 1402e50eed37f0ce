package fingerprint

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func mustFingerprint(t *testing.T, h *Hasher, identity string, args []Arg) Digest {
	t.Helper()
	d, err := h.Fingerprint(identity, args, nil)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	return d
}

func TestFingerprint_Deterministic(t *testing.T) {
	h := New(nil)

	tests := []struct {
		name string
		args []Arg
	}{
		{name: "no args", args: nil},
		{name: "basic types", args: []Arg{{"a", 1}, {"b", "hello"}, {"c", true}, {"d", 3.14}}},
		{name: "bytes", args: []Arg{{"payload", []byte{0x01, 0x02}}}},
		{name: "slice", args: []Arg{{"ids", []int{1, 2, 3}}}},
		{name: "map", args: []Arg{{"opts", map[string]int{"a": 1, "b": 2}}}},
		{name: "nested", args: []Arg{{"v", []any{"x", []int{1}, map[string]string{"k": "v"}}}}},
		{name: "nil value", args: []Arg{{"v", nil}}},
		{name: "pointer", args: []Arg{{"n", ptr(42)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := mustFingerprint(t, h, "pkg.Fn", tt.args)
			for i := 0; i < 10; i++ {
				if got := mustFingerprint(t, h, "pkg.Fn", tt.args); got != first {
					t.Fatalf("digest changed between identical calls: %s != %s", got.Hex(), first.Hex())
				}
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestFingerprint_DistinctInputs(t *testing.T) {
	h := New(nil)

	digests := map[Digest]string{}
	cases := []struct {
		name string
		id   string
		args []Arg
	}{
		{"int 1", "pkg.Fn", []Arg{{"a", 1}}},
		{"int 2", "pkg.Fn", []Arg{{"a", 2}}},
		{"string 1", "pkg.Fn", []Arg{{"a", "1"}}},
		{"renamed arg", "pkg.Fn", []Arg{{"b", 1}}},
		{"other identity", "pkg.Other", []Arg{{"a", 1}}},
		{"bool", "pkg.Fn", []Arg{{"a", true}}},
		{"slice order", "pkg.Fn", []Arg{{"a", []int{1, 2}}}},
		{"slice order swapped", "pkg.Fn", []Arg{{"a", []int{2, 1}}}},
		{"extra arg", "pkg.Fn", []Arg{{"a", 1}, {"b", 1}}},
	}
	for _, c := range cases {
		d := mustFingerprint(t, h, c.id, c.args)
		if prev, dup := digests[d]; dup {
			t.Errorf("collision between %q and %q", prev, c.name)
		}
		digests[d] = c.name
	}
}

func TestFingerprint_ArgOrderIndependent(t *testing.T) {
	h := New(nil)

	a := mustFingerprint(t, h, "pkg.Fn", []Arg{{"x", 1}, {"y", "two"}})
	b := mustFingerprint(t, h, "pkg.Fn", []Arg{{"y", "two"}, {"x", 1}})
	if a != b {
		t.Errorf("named argument order changed the digest: %s != %s", a.Hex(), b.Hex())
	}
}

func TestFingerprint_MapOrderIndependent(t *testing.T) {
	h := New(nil)

	// Build two maps with identical contents but different insertion
	// histories; iteration order differences must not affect the digest.
	m1 := map[string]int{}
	m2 := map[string]int{}
	keys := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for i, k := range keys {
		m1[k] = i
	}
	for i := len(keys) - 1; i >= 0; i-- {
		m2[keys[i]] = i
	}

	a := mustFingerprint(t, h, "pkg.Fn", []Arg{{"m", m1}})
	b := mustFingerprint(t, h, "pkg.Fn", []Arg{{"m", m2}})
	if a != b {
		t.Errorf("map ordering changed the digest")
	}
}

func TestFingerprint_IgnoreConvention(t *testing.T) {
	h := New(nil)

	a := mustFingerprint(t, h, "pkg.Fn", []Arg{{"a", 1}, {"_conn", "server-1"}})
	b := mustFingerprint(t, h, "pkg.Fn", []Arg{{"a", 1}, {"_conn", "server-2"}})
	if a != b {
		t.Errorf("changing a marker-prefixed argument changed the digest")
	}

	c := mustFingerprint(t, h, "pkg.Fn", []Arg{{"a", 2}, {"_conn", "server-1"}})
	if a == c {
		t.Errorf("changing a fingerprinted argument did not change the digest")
	}
}

func TestFingerprint_CustomIgnorePredicate(t *testing.T) {
	h := New(nil)

	ignoreSecond := func(a Arg) bool { return a.Name == "b" }

	one, err := h.Fingerprint("pkg.Fn", []Arg{{"a", 1}, {"b", 1}}, ignoreSecond)
	if err != nil {
		t.Fatal(err)
	}
	two, err := h.Fingerprint("pkg.Fn", []Arg{{"a", 1}, {"b", 2}}, ignoreSecond)
	if err != nil {
		t.Fatal(err)
	}
	if one != two {
		t.Errorf("excluded argument leaked into the digest")
	}
}

func TestFingerprint_TypeEncoders(t *testing.T) {
	type user struct {
		ID   string
		Name string
	}

	h := New(map[reflect.Type]Encoder{
		reflect.TypeOf(user{}): func(v any) (any, error) {
			return v.(user).ID, nil
		},
		reflect.TypeOf(time.Time{}): func(v any) (any, error) {
			return v.(time.Time).UnixNano(), nil
		},
	})

	// Same ID, different name: encoder only looks at the ID.
	a := mustFingerprint(t, h, "pkg.Fn", []Arg{{"u", user{ID: "u1", Name: "Alice"}}})
	b := mustFingerprint(t, h, "pkg.Fn", []Arg{{"u", user{ID: "u1", Name: "Bob"}}})
	if a != b {
		t.Errorf("encoder output should drive the digest, got %s and %s", a.Hex(), b.Hex())
	}

	c := mustFingerprint(t, h, "pkg.Fn", []Arg{{"u", user{ID: "u2", Name: "Alice"}}})
	if a == c {
		t.Errorf("distinct encoder outputs produced the same digest")
	}

	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	d1 := mustFingerprint(t, h, "pkg.Fn", []Arg{{"t", ts}})
	d2 := mustFingerprint(t, h, "pkg.Fn", []Arg{{"t", ts}})
	if d1 != d2 {
		t.Errorf("time encoder is not deterministic")
	}

	// An encoded type and its raw encoding must not collide.
	raw := mustFingerprint(t, h, "pkg.Fn", []Arg{{"u", "u1"}})
	if raw == a {
		t.Errorf("encoded struct collided with its primitive encoding")
	}
}

func TestFingerprint_UnsupportedType(t *testing.T) {
	h := New(nil)

	type opaque struct{ v int }

	tests := []struct {
		name  string
		value any
	}{
		{"struct without encoder", opaque{v: 1}},
		{"func", func() {}},
		{"chan", make(chan int)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Fingerprint("pkg.Fn", []Arg{{"a", tt.value}}, nil)
			if err == nil {
				t.Fatal("expected an error for unsupported type")
			}
			var argErr *ArgumentError
			if !errors.As(err, &argErr) {
				t.Fatalf("expected *ArgumentError, got %T", err)
			}
			if argErr.Name != "a" {
				t.Errorf("ArgumentError.Name = %q, want %q", argErr.Name, "a")
			}
			var typeErr *UnsupportedTypeError
			if !errors.As(err, &typeErr) {
				t.Errorf("expected wrapped *UnsupportedTypeError, got %v", err)
			}
		})
	}
}

func TestFingerprint_EncoderFailure(t *testing.T) {
	type secret struct{ v string }

	boom := errors.New("cannot encode")
	h := New(map[reflect.Type]Encoder{
		reflect.TypeOf(secret{}): func(v any) (any, error) { return nil, boom },
	})

	_, err := h.Fingerprint("pkg.Fn", []Arg{{"s", secret{v: "x"}}}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected encoder failure to surface, got %v", err)
	}
}

func TestFingerprint_Cycles(t *testing.T) {
	h := New(nil)

	cyclic := map[string]any{}
	cyclic["self"] = cyclic

	// Must terminate and stay deterministic.
	a := mustFingerprint(t, h, "pkg.Fn", []Arg{{"m", cyclic}})
	b := mustFingerprint(t, h, "pkg.Fn", []Arg{{"m", cyclic}})
	if a != b {
		t.Errorf("cyclic structure produced unstable digests")
	}
}

func TestFingerprint_NamedTypesAreDistinct(t *testing.T) {
	type userID string

	h := New(nil)
	a := mustFingerprint(t, h, "pkg.Fn", []Arg{{"id", userID("u1")}})
	b := mustFingerprint(t, h, "pkg.Fn", []Arg{{"id", "u1"}})
	if a == b {
		t.Errorf("named string type collided with plain string")
	}
}
