package receiver

import (
	"context"
	"errors"
	"io"

	"github.com/oy3o/binparse/capture"
)

// File reads records sequentially from a capture file, optionally compressed.
type File struct {
	r *capture.Reader
}

var _ Receiver = (*File)(nil)

// OpenFile opens a capture file; see capture.Open for the compression rules.
func OpenFile(path string) (*File, error) {
	r, err := capture.Open(path)
	if err != nil {
		return nil, err
	}
	return &File{r: r}, nil
}

// Size returns the decoded size of the file, or -1 when it is compressed.
func (f *File) Size() int64 { return f.r.Size() }

// Reader exposes the decoded stream.
func (f *File) Reader() io.Reader { return f.r }

// Receive reads the next n bytes. The end of the file is io.EOF; a trailing
// partial record is ErrShortReceive.
func (f *File) Receive(ctx context.Context, n int) ([]byte, error) {
	if n <= 0 {
		return nil, ErrInvalidSize
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	got, err := io.ReadFull(f.r, buf)
	switch {
	case err == nil:
		return buf, nil
	case errors.Is(err, io.EOF):
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return buf[:got], short(got, n, err)
	}
	return nil, err
}

// Close closes the capture file.
func (f *File) Close() error { return f.r.Close() }
