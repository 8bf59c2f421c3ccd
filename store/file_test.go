package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gozephyr/vstorage/codec"
	"github.com/gozephyr/vstorage/errors"
	"github.com/stretchr/testify/require"
)

type document struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Basic Operations", func(t *testing.T) {
		dir := t.TempDir()
		s, err := NewFileStore[string, document](dir)
		require.NoError(t, err)
		require.Equal(t, dir, s.Dir())

		doc := document{Title: "hello", Tags: []string{"a", "b"}}
		require.NoError(t, s.Update(ctx, "doc/1", doc))
		_, err = os.Stat(s.Path("doc/1"))
		require.NoError(t, err)
		require.Equal(t, dir, filepath.Dir(s.Path("doc/1")))

		got, ok, err := s.Read(ctx, "doc/1")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, doc, got)

		require.NoError(t, s.Delete(ctx, "doc/1"))
		_, ok, err = s.Read(ctx, "doc/1")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("Reopen Counts Existing Entries", func(t *testing.T) {
		dir := t.TempDir()
		s, err := NewFileStore[int, string](dir)
		require.NoError(t, err)
		for i := 1; i <= 3; i++ {
			require.NoError(t, s.Update(ctx, i, "v"))
		}

		reopened, err := NewFileStore[int, string](dir)
		require.NoError(t, err)
		require.Equal(t, 3, reopened.Entries(ctx))
		require.ElementsMatch(t, []int{1, 2, 3}, Keys[int, string](ctx, reopened))
	})

	t.Run("Compressed Values", func(t *testing.T) {
		dir := t.TempDir()
		s, err := NewFileStore[string, string](dir, WithCodec(codec.Config{
			Compression: codec.GzipCompression,
			Level:       6,
			MinSize:     16,
		}))
		require.NoError(t, err)

		large := strings.Repeat("compressible ", 200)
		require.NoError(t, s.Update(ctx, "big", large))
		info, err := os.Stat(s.Path("big"))
		require.NoError(t, err)
		require.Less(t, info.Size(), int64(len(large)))

		got, _, err := s.Read(ctx, "big")
		require.NoError(t, err)
		require.Equal(t, large, got)
	})

	t.Run("Corrupt Record", func(t *testing.T) {
		dir := t.TempDir()
		s, err := NewFileStore[string, string](dir)
		require.NoError(t, err)
		require.NoError(t, s.Update(ctx, "good", "v"))
		require.NoError(t, os.WriteFile(s.Path("bad"), []byte{0, '{'}, 0o644))

		_, _, err = s.Read(ctx, "bad")
		require.Error(t, err)
		require.ErrorIs(t, err, errors.ErrDeserialization)

		// iteration skips what it cannot decode
		require.Equal(t, []string{"good"}, Keys[string, string](ctx, s))
	})

	t.Run("Clear Leaves Foreign Files", func(t *testing.T) {
		dir := t.TempDir()
		s, err := NewFileStore[string, string](dir)
		require.NoError(t, err)
		require.NoError(t, s.Update(ctx, "a", "1"))
		foreign := filepath.Join(dir, "README")
		require.NoError(t, os.WriteFile(foreign, []byte("keep"), 0o644))

		require.NoError(t, s.Clear(ctx))
		require.True(t, s.IsEmpty(ctx))
		_, err = os.Stat(foreign)
		require.NoError(t, err)
	})

	t.Run("Invalid Directory", func(t *testing.T) {
		_, err := NewFileStore[string, string]("")
		require.ErrorIs(t, err, errors.ErrInvalidConfiguration)

		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, nil, 0o644))
		_, err = NewFileStore[string, string](filepath.Join(file, "sub"))
		require.Error(t, err)
		require.True(t, errors.IsErrorType(err, errors.ErrorTypeIO))
	})
}
