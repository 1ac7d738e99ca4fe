package binparse

import (
	"bufio"
	"io"
)

// RecordReader splits a byte stream into fixed-size records. It tracks the
// first error; subsequent reads return it.
type RecordReader struct {
	r     *bufio.Reader
	buf   []byte
	count int64 // records read
	err   error
}

// NewRecordReader reads records of size bytes from r. An existing bufio.Reader
// is used as is.
func NewRecordReader(r io.Reader, size int) (*RecordReader, error) {
	if r == nil {
		return nil, ErrNilIO
	}
	if size <= 0 {
		return nil, ErrInvalidRecordSize
	}
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, max(size, BUFFER_SIZE))
	}
	return &RecordReader{r: br, buf: make([]byte, size)}, nil
}

// Next returns the next record. The slice is reused by the following call.
// A clean end of stream is io.EOF; a trailing partial record is
// io.ErrUnexpectedEOF.
func (r *RecordReader) Next() ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	if _, err := io.ReadFull(r.r, r.buf); err != nil {
		r.setError(err)
		return nil, r.err
	}
	r.count++
	return r.buf, nil
}

// More reports whether another byte is available without consuming it.
func (r *RecordReader) More() bool {
	if r.err != nil {
		return false
	}
	_, err := r.r.Peek(1)
	return err == nil
}

func (r *RecordReader) Size() int    { return len(r.buf) }
func (r *RecordReader) Count() int64 { return r.count }
func (r *RecordReader) Err() error   { return r.err }
func (r *RecordReader) IsEOF() bool  { return r.err == io.EOF }

// setError records the first non-nil error.
func (r *RecordReader) setError(err error) {
	if r.err == nil && err != nil {
		r.err = err
	}
}
