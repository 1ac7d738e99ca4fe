// Package capture opens and creates binary capture files. A capture file is a
// plain concatenation of fixed-size records, optionally compressed as a whole:
// the compression is chosen by file extension (.zst or .zstd for zstd, .lz4 for lz4).
package capture

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies how a capture file is encoded.
type Compression int

const (
	None Compression = iota
	Zstd
	LZ4
)

func (c Compression) String() string {
	switch c {
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return "none"
	}
}

// CompressionOf returns the compression implied by the extension of path.
func CompressionOf(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		return Zstd
	case ".lz4":
		return LZ4
	default:
		return None
	}
}

// Reader reads the decompressed contents of a capture file.
type Reader struct {
	io.Reader
	file   *os.File
	closer func()
	size   int64
}

// Open opens a capture file for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := &Reader{Reader: f, file: f, size: -1}

	switch CompressionOf(path) {
	case Zstd:
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		r.Reader, r.closer = dec, dec.Close
	case LZ4:
		r.Reader = lz4.NewReader(f)
	default:
		if info, err := f.Stat(); err == nil {
			r.size = info.Size()
		}
	}
	return r, nil
}

// Size returns the number of decoded bytes in the file, or -1 when the file
// is compressed and the size is only known after reading it.
func (r *Reader) Size() int64 { return r.size }

// Close releases the decoder and the file.
func (r *Reader) Close() error {
	if r.closer != nil {
		r.closer()
	}
	return r.file.Close()
}

// Writer writes a capture file, compressing by extension.
type Writer struct {
	io.Writer
	file *os.File
	enc  io.WriteCloser
}

// Create truncates or creates a capture file for writing.
func Create(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	w := &Writer{Writer: f, file: f}

	switch CompressionOf(path) {
	case Zstd:
		enc, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		w.Writer, w.enc = enc, enc
	case LZ4:
		enc := lz4.NewWriter(f)
		w.Writer, w.enc = enc, enc
	}
	return w, nil
}

// Close flushes the encoder, if any, and closes the file.
func (w *Writer) Close() error {
	var encErr error
	if w.enc != nil {
		encErr = w.enc.Close()
	}
	return errors.Join(encErr, w.file.Close())
}
