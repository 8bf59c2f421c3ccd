// Package codec encodes values for stores that keep their entries outside
// the process: JSON, optionally compressed.
package codec

import (
	"bytes"
	"compress/gzip"
	"compress/lzw"
	"compress/zlib"
	"encoding/json"
	"io"

	"github.com/gozephyr/vstorage/errors"
)

// Compression represents the compression algorithm to use
type Compression byte

const (
	// NoCompression stores plain JSON
	NoCompression Compression = iota
	// GzipCompression uses gzip compression
	GzipCompression
	// ZlibCompression uses zlib compression
	ZlibCompression
	// LZWCompression uses LZW compression
	LZWCompression
)

// Config represents configuration for a codec
type Config struct {
	Compression Compression
	Level       int
	// MinSize is the smallest payload worth compressing
	MinSize int
}

// DefaultConfig returns a codec configuration without compression
func DefaultConfig() Config {
	return Config{
		Compression: NoCompression,
		Level:       gzip.DefaultCompression,
		MinSize:     1024,
	}
}

// Codec turns values of type T into bytes and back. Every payload starts
// with one byte naming the compression used, so a reader does not need
// to know how the writer was configured.
type Codec[T any] struct {
	config  Config
	buffers *ObjectPool[*bytes.Buffer]
}

// New creates a codec
func New[T any](config Config) *Codec[T] {
	return &Codec[T]{
		config:  config,
		buffers: NewObjectPool(func() *bytes.Buffer { return new(bytes.Buffer) }),
	}
}

// Encode serializes value
func (c *Codec[T]) Encode(value T) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, errors.WrapError("Encode", nil, errors.ErrSerialization)
	}

	algo := c.config.Compression
	if len(raw) < c.config.MinSize {
		algo = NoCompression
	}
	if algo == NoCompression {
		return append([]byte{byte(NoCompression)}, raw...), nil
	}

	buf := c.buffers.Get()
	defer func() {
		buf.Reset()
		c.buffers.Put(buf)
	}()
	buf.WriteByte(byte(algo))
	if err := compress(buf, raw, algo, c.config.Level); err != nil {
		return nil, errors.WrapError("Encode", nil, err)
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// Decode deserializes data produced by Encode
func (c *Codec[T]) Decode(data []byte) (T, error) {
	var value T
	if len(data) == 0 {
		return value, errors.WrapError("Decode", nil, errors.ErrDeserialization)
	}

	raw := data[1:]
	if algo := Compression(data[0]); algo != NoCompression {
		var err error
		raw, err = decompress(raw, algo)
		if err != nil {
			return value, errors.WrapError("Decode", nil, err)
		}
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, errors.WrapError("Decode", nil, errors.ErrDeserialization)
	}
	return value, nil
}

func compress(w io.Writer, data []byte, algo Compression, level int) error {
	var writer io.WriteCloser
	var err error

	switch algo {
	case GzipCompression:
		writer, err = gzip.NewWriterLevel(w, level)
	case ZlibCompression:
		writer, err = zlib.NewWriterLevel(w, level)
	case LZWCompression:
		writer = lzw.NewWriter(w, lzw.LSB, 8)
	default:
		return errors.ErrInvalidOperation
	}
	if err != nil {
		return errors.ErrSerialization
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return errors.ErrSerialization
	}
	if err := writer.Close(); err != nil {
		return errors.ErrSerialization
	}
	return nil
}

func decompress(data []byte, algo Compression) ([]byte, error) {
	var reader io.ReadCloser
	var err error

	switch algo {
	case GzipCompression:
		reader, err = gzip.NewReader(bytes.NewReader(data))
	case ZlibCompression:
		reader, err = zlib.NewReader(bytes.NewReader(data))
	case LZWCompression:
		reader = lzw.NewReader(bytes.NewReader(data), lzw.LSB, 8)
	default:
		return nil, errors.ErrDeserialization
	}
	if err != nil {
		return nil, errors.ErrDeserialization
	}
	defer reader.Close()

	out, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.ErrDeserialization
	}
	return out, nil
}
