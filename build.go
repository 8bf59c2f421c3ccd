package vstorage

import (
	"context"
	"fmt"

	"github.com/gozephyr/vstorage/codec"
	"github.com/gozephyr/vstorage/errors"
	"github.com/gozephyr/vstorage/metrics"
	"github.com/gozephyr/vstorage/policy"
	"github.com/gozephyr/vstorage/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// BuildOption configures Build
type BuildOption func(*buildOptions)

type buildOptions struct {
	logger   *zap.Logger
	registry prometheus.Registerer
	redis    redis.UniversalClient
}

// WithLogger sets the logger handed to every built store
func WithLogger(logger *zap.Logger) BuildOption {
	return func(o *buildOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsRegistry registers Prometheus metrics for every LRU and cached
// storage built
func WithMetricsRegistry(reg prometheus.Registerer) BuildOption {
	return func(o *buildOptions) {
		o.registry = reg
	}
}

// WithRedisClient makes redis storages use client instead of connecting to
// their redisAddr. The caller keeps ownership of client.
func WithRedisClient(client redis.UniversalClient) BuildOption {
	return func(o *buildOptions) {
		o.redis = client
	}
}

// Storage is a store built from a Config. Close releases the connections
// the build opened and unregisters its metrics.
type Storage[V any] struct {
	store.Store[string, V]
	config     Config
	clients    []*redis.Client
	registry   prometheus.Registerer
	collectors []prometheus.Collector
}

// Config returns the configuration the storage was built from
func (s *Storage[V]) Config() Config {
	return s.config
}

// UpdateAll passes the batch on to the built store, so stores that stage
// batches keep doing so
func (s *Storage[V]) UpdateAll(ctx context.Context, entries []store.Entry[string, V]) error {
	return store.UpdateAll(ctx, s.Store, entries)
}

// Close closes the redis connections opened by Build and removes the
// storage's collectors from the metrics registry, so the same config can be
// built again on that registry.
func (s *Storage[V]) Close() error {
	errs := make([]error, 0, len(s.clients))
	for _, c := range s.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.clients = nil
	unregister(s.registry, s.collectors)
	s.collectors = nil
	return errors.Join(errs...)
}

func unregister(reg prometheus.Registerer, collectors []prometheus.Collector) {
	for _, c := range collectors {
		reg.Unregister(c)
	}
}

// builder carries the state of one Build call
type builder[V any] struct {
	opts       buildOptions
	clients    []*redis.Client
	collectors []prometheus.Collector
}

// Build constructs the storage described by cfg. Either the whole tree is
// built or, on error, every connection opened so far is closed again.
func Build[V any](ctx context.Context, cfg Config, opts ...BuildOption) (*Storage[V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &builder[V]{opts: buildOptions{logger: zap.NewNop()}}
	for _, opt := range opts {
		opt(&b.opts)
	}

	s, err := b.build(ctx, cfg, string(cfg.Type))
	if err != nil {
		for _, c := range b.clients {
			_ = c.Close()
		}
		unregister(b.opts.registry, b.collectors)
		return nil, err
	}
	b.opts.logger.Debug("built storage", zap.String("type", string(cfg.Type)), zap.String("name", cfg.Name))
	return &Storage[V]{
		Store:      s,
		config:     cfg,
		clients:    b.clients,
		registry:   b.opts.registry,
		collectors: b.collectors,
	}, nil
}

// storeOptions translates the settings shared by every kind
func (b *builder[V]) storeOptions(cfg Config, path string) ([]store.Option, error) {
	name := cfg.Name
	if name == "" {
		name = path
	}
	opts := []store.Option{
		store.WithName(name),
		store.WithLogger(b.opts.logger),
	}
	if cfg.Capacity > 0 {
		opts = append(opts, store.WithCapacity(cfg.Capacity))
	}
	switch cfg.KeyGenerator {
	case "", KeysUUID:
		opts = append(opts, store.WithKeyGenerator(store.UUIDKeys()))
	case KeysSequence:
		opts = append(opts, store.WithKeyGenerator(store.PrefixedKeys(name)))
	}
	if cfg.Compression != "" {
		opts = append(opts, store.WithCodec(codecConfig(cfg.Compression)))
	}
	if b.opts.registry != nil && (cfg.Type == KindLRU || cfg.Type == KindCached) {
		exporter, err := metrics.NewPrometheusExporter(b.opts.registry, name, nil)
		if err != nil {
			return nil, errors.WrapError("Build", path, err)
		}
		b.collectors = append(b.collectors, exporter.Collectors()...)
		opts = append(opts, store.WithMetrics(exporter))
	}
	return opts, nil
}

func codecConfig(compression string) codec.Config {
	c := codec.DefaultConfig()
	switch compression {
	case CompressionGzip:
		c.Compression = codec.GzipCompression
	case CompressionZlib:
		c.Compression = codec.ZlibCompression
	case CompressionLZW:
		c.Compression = codec.LZWCompression
	}
	return c
}

func (b *builder[V]) members(ctx context.Context, cfgs []Config, path string) ([]store.Store[string, V], error) {
	members := make([]store.Store[string, V], 0, len(cfgs))
	for i, c := range cfgs {
		m, err := b.build(ctx, c, fmt.Sprintf("%s.storages[%d]", path, i))
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, nil
}

func (b *builder[V]) build(ctx context.Context, cfg Config, path string) (store.Store[string, V], error) {
	opts, err := b.storeOptions(cfg, path)
	if err != nil {
		return nil, err
	}

	switch cfg.Type {
	case KindMemory:
		return asStore[V](store.NewMemoryStore[string, V](opts...))
	case KindSorted:
		return asStore[V](store.NewSortedMemoryStore[string, V](opts...))
	case KindLRU:
		if cfg.Retention > 0 {
			opts = append(opts, store.WithRetention(cfg.Retention))
		}
		if cfg.EvictionPolicy != "" {
			opts = append(opts, store.WithEvictionPolicy(policy.Kind(cfg.EvictionPolicy)))
		}
		return asStore[V](store.NewLRUStore[string, V](opts...))
	case KindCached:
		superset, err := b.build(ctx, *cfg.Superset, path+".superset")
		if err != nil {
			return nil, err
		}
		subset, err := b.build(ctx, *cfg.Subset, path+".subset")
		if err != nil {
			return nil, err
		}
		if cfg.CacheOnCreate != nil {
			opts = append(opts, store.WithCacheOnCreate(*cfg.CacheOnCreate))
		}
		if cfg.CacheOnRead != nil {
			opts = append(opts, store.WithCacheOnRead(*cfg.CacheOnRead))
		}
		if cfg.CacheOnUpdate != nil {
			opts = append(opts, store.WithCacheOnUpdate(*cfg.CacheOnUpdate))
		}
		return asStore[V](store.NewCachedStore(superset, subset, opts...))
	case KindChained:
		members, err := b.members(ctx, cfg.Storages, path)
		if err != nil {
			return nil, err
		}
		return asStore[V](store.NewChainedStore(ctx, members, opts...))
	case KindClustered:
		members, err := b.members(ctx, cfg.Storages, path)
		if err != nil {
			return nil, err
		}
		return asStore[V](store.NewClusteredStore(ctx, members, opts...))
	case KindReplicated:
		members, err := b.members(ctx, cfg.Storages, path)
		if err != nil {
			return nil, err
		}
		return asStore[V](store.NewReplicatedStore(ctx, members, opts...))
	case KindFile:
		return asStore[V](store.NewFileStore[string, V](cfg.Directory, opts...))
	case KindRedis:
		return asStore[V](store.NewRedisStore[V](b.redisClient(cfg), cfg.RedisKey, opts...))
	default:
		return nil, errors.WrapError("Build", path, errors.ErrInvalidConfiguration)
	}
}

// asStore drops the concrete type so a failed constructor yields a nil
// interface
func asStore[V any, S store.Store[string, V]](s S, err error) (store.Store[string, V], error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

// redisClient returns the shared client, or opens one owned by the build
func (b *builder[V]) redisClient(cfg Config) redis.UniversalClient {
	if b.opts.redis != nil {
		return b.opts.redis
	}
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.RedisDB})
	b.clients = append(b.clients, client)
	return client
}
