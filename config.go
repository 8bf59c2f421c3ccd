// Package vstorage builds key-value storages from a flat configuration and
// provides collection helpers on top of the store package.
package vstorage

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gozephyr/vstorage/errors"
	"github.com/gozephyr/vstorage/policy"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Kind names a storage implementation in configuration
type Kind string

// Storage kinds
const (
	// KindMemory is an unordered in-memory map
	KindMemory Kind = "memory"
	// KindSorted is an in-memory store iterated in key order
	KindSorted Kind = "sorted"
	// KindLRU evicts entries by policy and retention instead of failing when full
	KindLRU Kind = "lru"
	// KindCached fronts a superset storage with a subset cache
	KindCached Kind = "cached"
	// KindChained fills its members one after another
	KindChained Kind = "chained"
	// KindClustered spreads keys over members by hash
	KindClustered Kind = "clustered"
	// KindReplicated writes every entry to all members
	KindReplicated Kind = "replicated"
	// KindFile keeps one file per entry in a directory
	KindFile Kind = "file"
	// KindRedis keeps entries in a redis hash
	KindRedis Kind = "redis"
)

// Key generator names
const (
	KeysUUID     = "uuid"
	KeysSequence = "sequence"
	KeysNone     = "none"
)

// Compression names accepted by file and redis storages
const (
	CompressionNone = "none"
	CompressionGzip = "gzip"
	CompressionZlib = "zlib"
	CompressionLZW  = "lzw"
)

// Config describes one storage. Composite storages nest the configuration
// of their members. Zero values mean "use the default".
type Config struct {
	Type Kind   `yaml:"type" mapstructure:"type"`
	Name string `yaml:"name,omitempty" mapstructure:"name"`

	// Capacity is the entry ceiling; 0, -1 or absent means unbounded
	Capacity int `yaml:"capacity,omitempty" mapstructure:"capacity"`

	// KeyGenerator is uuid (default), sequence or none
	KeyGenerator string `yaml:"keyGenerator,omitempty" mapstructure:"keyGenerator"`

	// LRU only
	Retention      time.Duration `yaml:"retention,omitempty" mapstructure:"retention"`
	EvictionPolicy string        `yaml:"evictionPolicy,omitempty" mapstructure:"evictionPolicy"`

	// Cached only. Unset flags keep the store defaults: mirror on read only.
	CacheOnCreate *bool   `yaml:"cacheOnCreate,omitempty" mapstructure:"cacheOnCreate"`
	CacheOnRead   *bool   `yaml:"cacheOnRead,omitempty" mapstructure:"cacheOnRead"`
	CacheOnUpdate *bool   `yaml:"cacheOnUpdate,omitempty" mapstructure:"cacheOnUpdate"`
	Superset      *Config `yaml:"superset,omitempty" mapstructure:"superset"`
	Subset        *Config `yaml:"subset,omitempty" mapstructure:"subset"`

	// Chained, clustered and replicated
	Storages []Config `yaml:"storages,omitempty" mapstructure:"storages"`

	// File and redis
	Directory   string `yaml:"directory,omitempty" mapstructure:"directory"`
	Compression string `yaml:"compression,omitempty" mapstructure:"compression"`
	RedisAddr   string `yaml:"redisAddr,omitempty" mapstructure:"redisAddr"`
	RedisDB     int    `yaml:"redisDB,omitempty" mapstructure:"redisDB"`
	RedisKey    string `yaml:"redisKey,omitempty" mapstructure:"redisKey"`
}

// Bool returns a pointer to b, for the optional flags of Config
func Bool(b bool) *bool {
	return &b
}

func invalid(path, format string, args ...any) error {
	return errors.WrapError("Validate", path,
		fmt.Errorf("%w: %s", errors.ErrInvalidConfiguration, fmt.Sprintf(format, args...)))
}

// Validate checks c and every nested configuration
func (c Config) Validate() error {
	return c.validate(string(c.Type))
}

func (c Config) validate(path string) error {
	if c.Capacity < 0 && c.Capacity != -1 {
		return invalid(path, "capacity %d must not be negative", c.Capacity)
	}
	switch c.KeyGenerator {
	case "", KeysUUID, KeysSequence, KeysNone:
	default:
		return invalid(path, "unknown key generator %q", c.KeyGenerator)
	}
	if c.Retention < 0 {
		return invalid(path, "retention %s must not be negative", c.Retention)
	}

	switch c.Type {
	case KindMemory, KindSorted:
	case KindLRU:
		switch policy.Kind(c.EvictionPolicy) {
		case "", policy.KindLRU, policy.KindFIFO, policy.KindLFU:
		default:
			return invalid(path, "unknown eviction policy %q", c.EvictionPolicy)
		}
	case KindCached:
		if c.Superset == nil || c.Subset == nil {
			return invalid(path, "cached storage needs a superset and a subset")
		}
		if err := c.Superset.validate(path + ".superset"); err != nil {
			return err
		}
		if err := c.Subset.validate(path + ".subset"); err != nil {
			return err
		}
	case KindChained, KindClustered, KindReplicated:
		if len(c.Storages) == 0 {
			return errors.WrapError("Validate", path, errors.ErrNotAvailableStorage)
		}
		for i, member := range c.Storages {
			if err := member.validate(fmt.Sprintf("%s.storages[%d]", path, i)); err != nil {
				return err
			}
		}
	case KindFile:
		if c.Directory == "" {
			return invalid(path, "file storage needs a directory")
		}
	case KindRedis:
		if c.RedisKey == "" {
			return invalid(path, "redis storage needs a redisKey")
		}
	default:
		return invalid(path, "unknown storage type %q", c.Type)
	}

	switch c.Compression {
	case "", CompressionNone, CompressionGzip, CompressionZlib, CompressionLZW:
	default:
		return invalid(path, "unknown compression %q", c.Compression)
	}
	return nil
}

// ToMap flattens c into the key/value form used by configuration files
func (c Config) ToMap() (map[string]any, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.WrapError("ToMap", nil, errors.ErrSerialization)
	}
	m := map[string]any{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.WrapError("ToMap", nil, errors.ErrDeserialization)
	}
	return m, nil
}

// ConfigFromMap is the inverse of ToMap. Durations may be given as strings
// such as "90s".
func ConfigFromMap(m map[string]any) (Config, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return Config{}, errors.WrapError("ConfigFromMap", nil, errors.ErrSerialization)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML document
func ParseConfig(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, errors.WrapError("ParseConfig", nil,
			fmt.Errorf("%w: %v", errors.ErrInvalidConfiguration, err))
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadConfig reads the storage configuration from the file at path. The
// file format follows its extension (yaml, json, toml). Top-level scalar
// keys present in the file can be overridden from the environment with the
// VSTORAGE_ prefix, for example VSTORAGE_CAPACITY.
func LoadConfig(path string) (Config, error) {
	if _, err := os.Stat(path); err != nil {
		return Config{}, errors.WrapError("LoadConfig", path, fmt.Errorf("%w: %v", errors.ErrStoreError, err))
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("VSTORAGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	if err := v.ReadInConfig(); err != nil {
		return Config{}, errors.WrapError("LoadConfig", path,
			fmt.Errorf("%w: %v", errors.ErrInvalidConfiguration, err))
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.WrapError("LoadConfig", path,
			fmt.Errorf("%w: %v", errors.ErrInvalidConfiguration, err))
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
