package cachex

import (
	"log/slog"
	"reflect"
	"time"

	"github.com/raid-newvicx/cachex/fingerprint"
	"github.com/raid-newvicx/cachex/storage"
)

// config carries the decoration-time settings for Value and Reference.
type config struct {
	namespace       string
	expiresIn       time.Duration
	allowConcurrent bool
	typeEncoders    map[reflect.Type]fingerprint.Encoder
	storageFactory  storage.Factory
	factoryKey      string
	codec           Codec
	logger          *slog.Logger
	registry        *RefRegistry
	keyName         string
	ignoredArgs     map[int]struct{}
	ignore          func(fingerprint.Arg) bool
}

func newConfig(opts []Option) config {
	cfg := config{
		namespace:       DefaultNamespace,
		allowConcurrent: true,
		codec:           MsgpackCodec{},
		logger:          slog.Default(),
		registry:        defaultRegistry,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Option configures a single decoration.
type Option func(*config)

// WithNamespace sets the key namespace. Decorations sharing a backend but
// using different namespaces never collide.
func WithNamespace(ns string) Option {
	return func(c *config) { c.namespace = ns }
}

// WithExpiresIn sets the time before a cached entry is considered expired.
// Zero or negative means entries never expire. Expiry is observed lazily:
// nothing is purged until the next read.
func WithExpiresIn(d time.Duration) Option {
	return func(c *config) { c.expiresIn = d }
}

// WithAllowConcurrent controls stampede prevention. The default (true) lets
// concurrent calls with the same key each execute the computation. Passing
// false serializes calls per cache key: only one caller runs the miss path
// at a time, the rest observe its write.
func WithAllowConcurrent(allow bool) Option {
	return func(c *config) { c.allowConcurrent = allow }
}

// WithStorageFactory sets the backend factory for this decoration. The
// factory is resolved through the reference registry, so backends (and
// their network or file handles) are constructed at most once per factory
// identity. The default is a fresh in-process memory store private to the
// decoration.
func WithStorageFactory(f storage.Factory) Option {
	return func(c *config) { c.storageFactory = f }
}

// WithFactoryKey disambiguates storage factories that would otherwise
// resolve to the same reference registry entry. Factories returned by the
// same helper (storage.FileFactory, storage.RedisFactory, ...) carry the
// same identity and therefore one registry entry regardless of
// configuration; whichever resolves first wins. Supply distinct factory
// keys to force distinct backend instances.
func WithFactoryKey(key string) Option {
	return func(c *config) { c.factoryKey = key }
}

// WithTypeEncoder registers an encoder for an exact runtime type, merged
// into this decoration's fingerprint registry. Prefer the generic EncodeType
// helper.
func WithTypeEncoder(t reflect.Type, enc fingerprint.Encoder) Option {
	return func(c *config) {
		if c.typeEncoders == nil {
			c.typeEncoders = map[reflect.Type]fingerprint.Encoder{}
		}
		c.typeEncoders[t] = enc
	}
}

// EncodeType registers a typed encoder that converts T into a value the
// canonical encoding supports. Encoders must be deterministic across runs.
func EncodeType[T any](enc func(T) (any, error)) Option {
	t := reflect.TypeOf((*T)(nil)).Elem()
	return WithTypeEncoder(t, func(v any) (any, error) {
		return enc(v.(T))
	})
}

// WithCodec overrides the value serializer. The default is msgpack.
func WithCodec(codec Codec) Option {
	return func(c *config) { c.codec = codec }
}

// WithLogger overrides the logger used for hit/miss debugging and for the
// storage failures the cache swallows.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithRegistry resolves references through the given registry instead of the
// process default. Mostly useful for test isolation.
func WithRegistry(r *RefRegistry) Option {
	return func(c *config) { c.registry = r }
}

// WithKeyName overrides the function identity derived from the wrapped
// function's symbol name. Closure symbols are a compiler artifact, so
// decorations wrapping closures should set a key name whenever cache
// identity matters across builds or call sites.
func WithKeyName(name string) Option {
	return func(c *config) { c.keyName = name }
}

// WithIgnoredArgs excludes arguments from fingerprinting by position.
// Positions count the wrapped function's parameters left to right, skipping
// a leading context.Context. This is the explicit, Go-native counterpart of
// the underscore naming convention honored by the fingerprint package.
func WithIgnoredArgs(positions ...int) Option {
	return func(c *config) {
		if c.ignoredArgs == nil {
			c.ignoredArgs = map[int]struct{}{}
		}
		for _, p := range positions {
			c.ignoredArgs[p] = struct{}{}
		}
	}
}

// WithIgnorePredicate replaces the exclusion rule applied to fingerprint
// arguments. The default excludes names starting with an underscore, which
// is how WithIgnoredArgs marks positions.
func WithIgnorePredicate(ignore func(fingerprint.Arg) bool) Option {
	return func(c *config) { c.ignore = ignore }
}
