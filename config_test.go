package vstorage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gozephyr/vstorage/errors"
	"github.com/stretchr/testify/require"
)

const chainedYAML = `
type: chained
name: orders
capacity: 10
storages:
  - type: memory
    capacity: 2
  - type: lru
    capacity: 3
    retention: 90s
    evictionPolicy: lfu
  - type: memory
`

func TestConfig(t *testing.T) {
	t.Run("Parse", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(chainedYAML))
		require.NoError(t, err)
		require.Equal(t, KindChained, cfg.Type)
		require.Equal(t, "orders", cfg.Name)
		require.Equal(t, 10, cfg.Capacity)
		require.Len(t, cfg.Storages, 3)
		require.Equal(t, 90*time.Second, cfg.Storages[1].Retention)
		require.Equal(t, "lfu", cfg.Storages[1].EvictionPolicy)
		require.Equal(t, 0, cfg.Storages[2].Capacity)
	})

	t.Run("Validation", func(t *testing.T) {
		cases := map[string]Config{
			"unknown type":        {Type: "tape"},
			"negative capacity":   {Type: KindMemory, Capacity: -5},
			"unknown generator":   {Type: KindMemory, KeyGenerator: "random"},
			"unknown policy":      {Type: KindLRU, EvictionPolicy: "mru"},
			"negative retention":  {Type: KindLRU, Retention: -time.Second},
			"cached without tier": {Type: KindCached, Superset: &Config{Type: KindMemory}},
			"file without dir":    {Type: KindFile},
			"redis without key":   {Type: KindRedis},
			"unknown compression": {Type: KindFile, Directory: "x", Compression: "zstd"},
			"bad nested member": {Type: KindClustered, Storages: []Config{
				{Type: KindMemory}, {Type: KindMemory, Capacity: -2},
			}},
		}
		for name, cfg := range cases {
			err := cfg.Validate()
			require.Error(t, err, name)
			require.ErrorIs(t, err, errors.ErrInvalidConfiguration, name)
		}

		err := Config{Type: KindReplicated}.Validate()
		require.ErrorIs(t, err, errors.ErrNotAvailableStorage)

		require.NoError(t, Config{Type: KindMemory, Capacity: -1}.Validate())
	})

	t.Run("Nested Error Path", func(t *testing.T) {
		cfg := Config{Type: KindChained, Storages: []Config{
			{Type: KindMemory, Capacity: 1},
			{Type: KindCached, Superset: &Config{Type: KindMemory}, Subset: &Config{Type: "tape"}},
		}}
		err := cfg.Validate()
		require.Error(t, err)
		se := errors.GetStorageError(err)
		require.NotNil(t, se)
		require.Equal(t, "chained.storages[1].subset", se.Key)
	})

	t.Run("Map Round Trip", func(t *testing.T) {
		ctx := context.Background()
		cfg, err := ParseConfig([]byte(chainedYAML))
		require.NoError(t, err)

		m, err := cfg.ToMap()
		require.NoError(t, err)
		require.Equal(t, "chained", m["type"])

		back, err := ConfigFromMap(m)
		require.NoError(t, err)
		require.Equal(t, cfg, back)

		s1, err := Build[string](ctx, cfg)
		require.NoError(t, err)
		s2, err := Build[string](ctx, back)
		require.NoError(t, err)
		require.True(t, s1.IsEmpty(ctx))
		require.True(t, s2.IsEmpty(ctx))
		require.Equal(t, s1.Capacity(ctx), s2.Capacity(ctx))
	})

	t.Run("Cached Flags Round Trip", func(t *testing.T) {
		cfg := Config{
			Type:          KindCached,
			CacheOnUpdate: Bool(true),
			CacheOnRead:   Bool(false),
			Superset:      &Config{Type: KindMemory},
			Subset:        &Config{Type: KindLRU, Capacity: 4},
		}
		m, err := cfg.ToMap()
		require.NoError(t, err)
		back, err := ConfigFromMap(m)
		require.NoError(t, err)
		require.Equal(t, cfg, back)
		require.Nil(t, back.CacheOnCreate)
	})

	t.Run("Load File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "storage.yaml")
		require.NoError(t, os.WriteFile(path, []byte(chainedYAML), 0o600))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		require.Equal(t, KindChained, cfg.Type)
		require.Len(t, cfg.Storages, 3)
		require.Equal(t, 90*time.Second, cfg.Storages[1].Retention)
	})

	t.Run("Load Environment Override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "storage.yaml")
		require.NoError(t, os.WriteFile(path, []byte("type: memory\ncapacity: 5\n"), 0o600))
		t.Setenv("VSTORAGE_CAPACITY", "7")

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		require.Equal(t, 7, cfg.Capacity)
	})

	t.Run("Load Missing File", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
		require.ErrorIs(t, err, errors.ErrStoreError)
	})

	t.Run("Parse Rejects Invalid Document", func(t *testing.T) {
		_, err := ParseConfig([]byte("type: [memory"))
		require.ErrorIs(t, err, errors.ErrInvalidConfiguration)

		_, err = ParseConfig([]byte("type: lru\nevictionPolicy: random\n"))
		require.ErrorIs(t, err, errors.ErrInvalidConfiguration)
	})
}
