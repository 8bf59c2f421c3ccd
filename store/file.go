package store

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gozephyr/vstorage/codec"
	"github.com/gozephyr/vstorage/errors"
	"go.uber.org/zap"
)

// FileExtension is the extension of the files a FileStore owns
const FileExtension = ".entry"

// fileEntry is the record written for every key. The key is kept in the
// record so iteration does not have to parse file names.
type fileEntry[K comparable, V any] struct {
	Key       K         `json:"key"`
	Value     V         `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
}

// FileStore keeps one file per key in a directory. A missing file is an
// absent key; any other filesystem failure is reported as ErrStoreError.
type FileStore[K comparable, V any] struct {
	dir      string
	capacity int
	entries  int
	keys     KeyGenerator[K]
	codec    *codec.Codec[fileEntry[K, V]]
	clock    func() time.Time
	logger   *zap.Logger
}

// NewFileStore creates a file store in dir, creating the directory when
// needed. Entries already present in dir are counted.
func NewFileStore[K comparable, V any](dir string, opts ...Option) (*FileStore[K, V], error) {
	options, gen, err := applyOptions[K]("NewFileStore", opts)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return nil, errors.WrapError("NewFileStore", nil, errors.ErrInvalidConfiguration)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapError("NewFileStore", dir, ioError(err))
	}
	if err := verifyDirectoryWritable(dir); err != nil {
		return nil, errors.WrapError("NewFileStore", dir, ioError(err))
	}

	f := &FileStore[K, V]{
		dir:      dir,
		capacity: options.Capacity,
		keys:     gen,
		codec:    codec.New[fileEntry[K, V]](options.Codec),
		clock:    options.Clock,
		logger:   options.Logger.With(zap.String("store", options.Name), zap.String("dir", dir)),
	}
	names, err := f.files()
	if err != nil {
		return nil, errors.WrapError("NewFileStore", dir, err)
	}
	f.entries = len(names)
	return f, nil
}

// verifyDirectoryWritable checks if the directory is writable
func verifyDirectoryWritable(dir string) error {
	testFile := filepath.Join(dir, ".test_write")
	f, err := os.OpenFile(testFile, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("directory not writable: %w", err)
	}
	f.Close()
	return os.Remove(testFile)
}

// ioError marks err as a store I/O failure while keeping its message
func ioError(err error) error {
	return fmt.Errorf("%w: %v", errors.ErrStoreError, err)
}

// Dir returns the directory of the store
func (f *FileStore[K, V]) Dir() string {
	return f.dir
}

// Path returns the file that holds key
func (f *FileStore[K, V]) Path(key K) string {
	name := url.PathEscape(fmt.Sprintf("%v", key))
	return filepath.Join(f.dir, name+FileExtension)
}

// files lists the entry files in name order
func (f *FileStore[K, V]) files() ([]string, error) {
	dirEntries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, ioError(err)
	}
	names := make([]string, 0, len(dirEntries))
	for _, e := range dirEntries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), FileExtension) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// load reads the record at path. A missing file is reported as absent.
func (f *FileStore[K, V]) load(path string) (fileEntry[K, V], bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileEntry[K, V]{}, false, nil
		}
		return fileEntry[K, V]{}, false, ioError(err)
	}
	entry, err := f.codec.Decode(data)
	if err != nil {
		return fileEntry[K, V]{}, false, err
	}
	return entry, true, nil
}

// store writes the record for entry.Key through a temporary file and a
// rename, so a reader never sees a partial record
func (f *FileStore[K, V]) store(entry fileEntry[K, V]) error {
	data, err := f.codec.Encode(entry)
	if err != nil {
		return err
	}
	path := f.Path(entry.Key)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return ioError(err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return ioError(err)
	}
	return nil
}

// Entries returns the number of entries
func (f *FileStore[K, V]) Entries(ctx context.Context) int {
	return f.entries
}

// Capacity returns the entry ceiling
func (f *FileStore[K, V]) Capacity(ctx context.Context) int {
	return f.capacity
}

// IsEmpty reports whether the store has no entries
func (f *FileStore[K, V]) IsEmpty(ctx context.Context) bool {
	return f.entries == 0
}

// IsFull reports whether the store has reached its capacity
func (f *FileStore[K, V]) IsFull(ctx context.Context) bool {
	return isFull(f.entries, f.capacity)
}

// Create stores value under a generated key
func (f *FileStore[K, V]) Create(ctx context.Context, value V) (K, error) {
	var zero K
	if f.keys == nil {
		return zero, errors.WrapError("Create", nil, errors.ErrMissingKeyGenerator)
	}
	if f.IsFull(ctx) {
		return zero, errors.WrapError("Create", nil, errors.ErrOutOfSpace)
	}
	key, err := generateKey(ctx, f.keys, f.Has)
	if err != nil {
		return zero, err
	}
	if err := f.Update(ctx, key, value); err != nil {
		return zero, err
	}
	return key, nil
}

// Read returns the value bound to key
func (f *FileStore[K, V]) Read(ctx context.Context, key K) (V, bool, error) {
	var zero V
	if err := checkContext(ctx, "Read", key); err != nil {
		return zero, false, err
	}
	entry, ok, err := f.load(f.Path(key))
	if err != nil {
		return zero, false, errors.WrapError("Read", key, err)
	}
	if !ok {
		return zero, false, nil
	}
	return entry.Value, true, nil
}

// Update writes the record for key. Replacing a value keeps its creation time.
func (f *FileStore[K, V]) Update(ctx context.Context, key K, value V) error {
	if err := checkContext(ctx, "Update", key); err != nil {
		return err
	}
	existing, found, err := f.load(f.Path(key))
	if err != nil {
		return errors.WrapError("Update", key, err)
	}
	if !found && f.IsFull(ctx) {
		return errors.WrapError("Update", key, errors.ErrOutOfSpace)
	}
	createdAt := existing.CreatedAt
	if !found {
		createdAt = f.clock()
	}
	if err := f.store(fileEntry[K, V]{Key: key, Value: value, CreatedAt: createdAt}); err != nil {
		return errors.WrapError("Update", key, err)
	}
	if !found {
		f.entries++
	}
	return nil
}

// Delete removes the file of key
func (f *FileStore[K, V]) Delete(ctx context.Context, key K) error {
	if err := checkContext(ctx, "Delete", key); err != nil {
		return err
	}
	err := os.Remove(f.Path(key))
	switch {
	case err == nil:
		f.entries--
		return nil
	case os.IsNotExist(err):
		return nil
	default:
		return errors.WrapError("Delete", key, ioError(err))
	}
}

// Has reports whether key has a file
func (f *FileStore[K, V]) Has(ctx context.Context, key K) (bool, error) {
	if err := checkContext(ctx, "Has", key); err != nil {
		return false, err
	}
	_, err := os.Stat(f.Path(key))
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, errors.WrapError("Has", key, ioError(err))
	}
}

// Clear removes every entry file. Other files in the directory are left alone.
func (f *FileStore[K, V]) Clear(ctx context.Context) error {
	if err := checkContext(ctx, "Clear", nil); err != nil {
		return err
	}
	names, err := f.files()
	if err != nil {
		return errors.WrapError("Clear", nil, err)
	}
	for _, name := range names {
		if err := os.Remove(filepath.Join(f.dir, name)); err != nil && !os.IsNotExist(err) {
			return errors.WrapError("Clear", name, ioError(err))
		}
		f.entries--
	}
	f.entries = 0
	return nil
}

// Swap exchanges the values of key1 and key2
func (f *FileStore[K, V]) Swap(ctx context.Context, key1, key2 K) error {
	return SwapValues[K, V](ctx, f, key1, key2)
}

// All iterates the entries in file name order. A record that cannot be
// decoded is logged and skipped.
func (f *FileStore[K, V]) All(ctx context.Context) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		names, err := f.files()
		if err != nil {
			f.logger.Warn("listing entries failed", zap.Error(err))
			return
		}
		for _, name := range names {
			if ctx.Err() != nil {
				return
			}
			entry, ok, err := f.load(filepath.Join(f.dir, name))
			if err != nil {
				f.logger.Warn("skipping unreadable entry", zap.String("file", name), zap.Error(err))
				continue
			}
			if !ok {
				continue
			}
			if !yield(entry.Key, entry.Value) {
				return
			}
		}
	}
}
