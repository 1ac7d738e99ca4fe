package binparse

import (
	"bytes"
	"fmt"
	"io"
)

// String decodes a NUL-terminated byte string. It has no fixed width: each
// operation reports the bytes it consumed, terminator included, so the count
// is one more than the length of the decoded text. That is what lets a
// Sequence place the member after it. The decoder keeps no state between calls.
type String struct{}

// NewString returns the NUL-terminated string decoder.
func NewString() *String { return &String{} }

func (*String) decoder() {}

// Size is zero; the width is only known once a window is decoded.
func (*String) Size() int { return 0 }

// Decode returns the text before the first NUL and the bytes consumed
// including the NUL. A window without a terminator fails with ErrShortBuffer.
func (*String) Decode(b []byte) (string, int, error) {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		if b == nil {
			return "", 0, fmt.Errorf("%w: nil buffer", ErrShortBuffer)
		}
		return "", 0, fmt.Errorf("%w: no NUL terminator in %d bytes", ErrShortBuffer, len(b))
	}
	return string(b[:i]), i + 1, nil
}

func (s *String) Render(_ *Format, b []byte) (string, int, error) {
	return s.Decode(b)
}

func (s *String) Values(prefix string, b []byte) ([]NamedValue, int, error) {
	v, n, err := s.Decode(b)
	if err != nil {
		return nil, 0, err
	}
	return []NamedValue{{Name: prefix, Value: v}}, n, nil
}

func (s *String) WriteFormatted(w io.Writer, _ *Format, b []byte) (int, error) {
	v, n, err := s.Decode(b)
	if err != nil {
		return 0, err
	}
	if _, err := io.WriteString(w, v); err != nil {
		return 0, ioFailure(err)
	}
	return n, nil
}
