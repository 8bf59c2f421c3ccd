package store

import (
	"time"

	"github.com/gozephyr/vstorage/codec"
	"github.com/gozephyr/vstorage/errors"
	"github.com/gozephyr/vstorage/metrics"
	"github.com/gozephyr/vstorage/policy"
	"github.com/gozephyr/vstorage/ttl"
	"go.uber.org/zap"
)

// Options represents store configuration options. Each store reads the
// fields that apply to it and ignores the rest.
type Options struct {
	// Name identifies the store in logs and metrics
	Name string

	// Capacity is the entry ceiling, Unbounded by default. For composites it
	// is the aggregate capacity.
	Capacity int

	// KeyGenerator is a KeyGenerator[K] matching the store's key type. It is
	// required by Create only.
	KeyGenerator any

	// Retention is the time-to-live of an LRU store entry (0 disables it)
	Retention time.Duration

	// Clock supplies "now" for retention checks
	Clock ttl.Clock

	// Policy selects the eviction order of an LRU store
	Policy policy.Kind

	// CacheOnCreate, CacheOnRead and CacheOnUpdate control which operations
	// of a cached store mirror entries into its subset
	CacheOnCreate bool
	CacheOnRead   bool
	CacheOnUpdate bool

	// Codec configures value encoding for file and redis stores
	Codec codec.Config

	// Logger receives debug logs. Defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics receives hits, misses and evictions. Defaults to a no-op exporter.
	Metrics metrics.Exporter
}

// NewOptions creates a new Options instance with default values
func NewOptions() *Options {
	return &Options{
		Capacity:    Unbounded,
		Clock:       ttl.SystemClock,
		Policy:      policy.KindLRU,
		CacheOnRead: true,
		Codec:       codec.DefaultConfig(),
		Logger:      zap.NewNop(),
		Metrics:     metrics.Nop(),
	}
}

// Option is a function that configures store options
type Option func(*Options) error

// WithName sets the name used in logs and metrics
func WithName(name string) Option {
	return func(o *Options) error {
		o.Name = name
		return nil
	}
}

// WithCapacity sets the entry ceiling of the store
func WithCapacity(capacity int) Option {
	return func(o *Options) error {
		if capacity <= 0 && capacity != Unbounded {
			return errors.WrapError("WithCapacity", nil, errors.ErrInvalidCapacity)
		}
		o.Capacity = capacity
		return nil
	}
}

// WithKeyGenerator sets the generator used by Create
func WithKeyGenerator[K comparable](gen KeyGenerator[K]) Option {
	return func(o *Options) error {
		if gen == nil {
			return errors.WrapError("WithKeyGenerator", nil, errors.ErrInvalidConfiguration)
		}
		o.KeyGenerator = gen
		return nil
	}
}

// WithRetention sets the time-to-live of LRU store entries
func WithRetention(retention time.Duration) Option {
	return func(o *Options) error {
		if err := ttl.Validate(retention); err != nil {
			return err
		}
		o.Retention = retention
		return nil
	}
}

// WithClock sets the source of "now" for retention checks
func WithClock(clock ttl.Clock) Option {
	return func(o *Options) error {
		if clock == nil {
			return errors.WrapError("WithClock", nil, errors.ErrInvalidConfiguration)
		}
		o.Clock = clock
		return nil
	}
}

// WithEvictionPolicy sets the eviction order of an LRU store
func WithEvictionPolicy(kind policy.Kind) Option {
	return func(o *Options) error {
		switch kind {
		case policy.KindLRU, policy.KindFIFO, policy.KindLFU:
			o.Policy = kind
			return nil
		default:
			return errors.WrapError("WithEvictionPolicy", kind, errors.ErrInvalidConfiguration)
		}
	}
}

// WithCacheOnCreate mirrors created entries into the cache subset
func WithCacheOnCreate(enable bool) Option {
	return func(o *Options) error {
		o.CacheOnCreate = enable
		return nil
	}
}

// WithCacheOnRead mirrors entries read from the superset into the subset
func WithCacheOnRead(enable bool) Option {
	return func(o *Options) error {
		o.CacheOnRead = enable
		return nil
	}
}

// WithCacheOnUpdate mirrors updated entries into the subset. When disabled
// an update evicts the key from the subset instead.
func WithCacheOnUpdate(enable bool) Option {
	return func(o *Options) error {
		o.CacheOnUpdate = enable
		return nil
	}
}

// WithCodec sets value encoding for file and redis stores
func WithCodec(config codec.Config) Option {
	return func(o *Options) error {
		o.Codec = config
		return nil
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) error {
		if logger == nil {
			logger = zap.NewNop()
		}
		o.Logger = logger
		return nil
	}
}

// WithMetrics sets the metrics exporter
func WithMetrics(exporter metrics.Exporter) Option {
	return func(o *Options) error {
		if exporter == nil {
			exporter = metrics.Nop()
		}
		o.Metrics = exporter
		return nil
	}
}

// Apply applies the given options to the Options struct
func (o *Options) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return err
		}
	}
	return nil
}

// applyOptions builds Options from opts and resolves the key generator for K
func applyOptions[K comparable](op string, opts []Option) (*Options, KeyGenerator[K], error) {
	options := NewOptions()
	if err := options.Apply(opts...); err != nil {
		return nil, nil, errors.WrapError(op, nil, err)
	}
	if options.KeyGenerator == nil {
		return options, nil, nil
	}
	gen, ok := options.KeyGenerator.(KeyGenerator[K])
	if !ok {
		return nil, nil, errors.WrapError(op, nil, errors.ErrInvalidConfiguration)
	}
	return options, gen, nil
}
