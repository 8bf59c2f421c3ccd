package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gozephyr/vstorage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

const cachedConfig = `
type: cached
name: profiles
superset:
  type: chained
  storages:
    - type: memory
      capacity: 4
    - type: memory
subset:
  type: lru
  capacity: 8
  retention: 1m
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storage.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCommands(t *testing.T) {
	t.Run("Validate Prints Tree", func(t *testing.T) {
		var out bytes.Buffer
		cmd := NewRootCmd(zaptest.NewLogger(t))
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"validate", writeConfig(t, cachedConfig)})
		require.NoError(t, cmd.Execute())

		require.Equal(t, "cached profiles\n"+
			"  chained\n"+
			"    memory capacity=4\n"+
			"    memory\n"+
			"  lru capacity=8 retention=1m0s\n", out.String())
	})

	t.Run("Validate Rejects Bad Config", func(t *testing.T) {
		cmd := NewRootCmd(zaptest.NewLogger(t))
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"validate", writeConfig(t, "type: chained\n")})
		require.Error(t, cmd.Execute())
	})

	t.Run("Exercise", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		var out bytes.Buffer
		cmd := NewRootCmd(zap.New(core))
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"exercise", "--items", "10", writeConfig(t, cachedConfig)})
		require.NoError(t, cmd.Execute())

		require.Contains(t, out.String(), "wrote 10, read 10, deleted 5\n")
		require.Contains(t, out.String(), "entries 5, capacity unbounded\n")
		require.Contains(t, out.String(), "cache hits 0, misses 10\n")
		// ten updates and five deletes
		require.Equal(t, 15, logs.FilterMessage("storage event").Len())
	})

	t.Run("Exercise Out Of Space", func(t *testing.T) {
		cfg := vstorage.Config{Type: vstorage.KindMemory, Capacity: 3}
		err := exercise(context.Background(), &bytes.Buffer{}, zaptest.NewLogger(t), cfg, 5, vstorage.DefaultBatchConfig())
		require.Error(t, err)
	})

	t.Run("Serve Stops On Cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- serve(ctx, zaptest.NewLogger(t), vstorage.Config{Type: vstorage.KindLRU, Capacity: 2}, "127.0.0.1:0")
		}()
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("serve did not stop")
		}
	})
}
