package binparse

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

type sinkWriter interface {
	io.Writer
	io.StringWriter
	Flush() error
}

type (
	bytesBufferSinkAdapter    struct{ *bytes.Buffer }
	stringsBuilderSinkAdapter struct{ *strings.Builder }
)

func (bytesBufferSinkAdapter) Flush() error    { return nil }
func (stringsBuilderSinkAdapter) Flush() error { return nil }

// Sink is a buffered text sink for formatted records. It tracks the first
// error; after an error all subsequent writes become no-ops, so a record can
// be written field by field and checked once.
type Sink struct {
	w     sinkWriter
	count int64 // total bytes written
	err   error // first error encountered. Subsequent writes become no-ops.
	depth int
}

var _ io.StringWriter = (*Sink)(nil)

// NewSinkSize creates a Sink with a specified buffer size. It returns
// ErrAlreadyBuffered rather than double-buffer a smaller bufio.Writer.
func NewSinkSize(w io.Writer, size int) (*Sink, error) {
	if w == nil {
		return nil, ErrNilIO
	}

	switch bw := w.(type) {
	// Reuse the underlying buffer of a nested Sink.
	case *Sink:
		return &Sink{w: bw.w, depth: bw.depth + 1}, nil
	case *bufio.Writer:
		if bw.Size() >= size {
			return &Sink{w: bw, depth: 1}, nil
		}
		return nil, ErrAlreadyBuffered
	// in-memory destinations need no buffering
	case *bytes.Buffer:
		return &Sink{w: bytesBufferSinkAdapter{bw}}, nil
	case *strings.Builder:
		return &Sink{w: stringsBuilderSinkAdapter{bw}}, nil
	}

	return &Sink{w: bufio.NewWriterSize(w, max(size, BUFFER_SIZE))}, nil
}

// NewSink creates a Sink with a default buffer size.
func NewSink(w io.Writer) (*Sink, error) {
	return NewSinkSize(w, 0)
}

// Write implements the io.Writer interface.
func (s *Sink) Write(p []byte) (int, error) {
	if len(p) == 0 || s.err != nil {
		return 0, s.err
	}
	n, err := s.w.Write(p)
	s.count += int64(n)
	s.setError(err)
	return n, s.err
}

// WriteString implements the io.StringWriter interface.
func (s *Sink) WriteString(str string) (int, error) {
	if str == "" || s.err != nil {
		return 0, s.err
	}
	n, err := s.w.WriteString(str)
	s.count += int64(n)
	s.setError(err)
	return n, s.err
}

// WriteJoined writes items separated by delimiter.
func (s *Sink) WriteJoined(items []string, delimiter string) {
	for i, item := range items {
		if i > 0 {
			s.WriteString(delimiter)
		}
		s.WriteString(item)
	}
}

// WriteRecord decodes one record with d, writes it with f and ends the line.
// Nothing is written for a record that fails to decode.
func (s *Sink) WriteRecord(d Decoder, f *Format, record []byte, line *bytes.Buffer) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	line.Reset()
	n, err := d.WriteFormatted(line, f, record)
	if err != nil {
		return 0, err
	}
	line.WriteByte('\n')
	if _, err := s.Write(line.Bytes()); err != nil {
		return 0, ioFailure(err)
	}
	return n, nil
}

func (s *Sink) Count() int64 { return s.count }
func (s *Sink) Err() error   { return s.err }

// setError records the first non-nil error.
func (s *Sink) setError(err error) {
	if s.err == nil && err != nil {
		s.err = err
	}
}

// Flush writes any buffered data to the underlying io.Writer.
func (s *Sink) Flush() error {
	// Only the outermost sink flushes.
	if s.depth > 0 || s.err != nil {
		return s.err
	}
	err := s.w.Flush()
	s.setError(err)
	return err
}

// Result flushes the buffer and returns the final count and error state.
func (s *Sink) Result() (int64, error) {
	s.Flush()
	return s.count, s.err
}
