package binparse

import (
	"errors"
	"fmt"
	"io"
)

// Sizer is an interface for types that can report their binary size.
type Sizer interface {
	// Size returns the number of bytes a decoder needs from its window.
	// Variable-width decoders report only their fixed part.
	Size() int
}

// NamedValue is one decoded leaf, tagged with its qualified name such as
// "header.flags[2]".
type NamedValue struct {
	Name  string
	Value string
}

// Decoder interprets a byte window as typed values and renders them as text.
//
// The set of decoders is closed: Primitive, Array, String and Sequence.
// Every operation returns the number of bytes it consumed from the front of the
// window, so variable-width members advance the offset correctly. A window that
// is too short fails with ErrShortBuffer and is never read past its end.
type Decoder interface {
	Sizer

	// Render produces one text expression using the Format specifiers. Array
	// elements are concatenated without a delimiter.
	Render(f *Format, b []byte) (string, int, error)

	// Values produces one entry per leaf scalar. Nested decoders extend prefix.
	Values(prefix string, b []byte) ([]NamedValue, int, error)

	// WriteFormatted writes the values to w using the Format specifiers, with the
	// Format delimiter between siblings and between array elements.
	WriteFormatted(w io.Writer, f *Format, b []byte) (int, error)

	decoder()
}

// check interface implementations
var (
	_ Decoder = (*Primitive[int32])(nil)
	_ Decoder = (*Array[int32])(nil)
	_ Decoder = (*String)(nil)
	_ Decoder = (*Sequence)(nil)
)

// ioFailure tags a sink error with ErrIO exactly once.
func ioFailure(err error) error {
	if err == nil || errors.Is(err, ErrIO) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrIO, err)
}

// Primitive decodes one fixed-width numeric value of type T.
type Primitive[T Number] struct{}

// NewPrimitive returns the decoder for a single T.
func NewPrimitive[T Number]() *Primitive[T] { return &Primitive[T]{} }

func (*Primitive[T]) decoder() {}

// Kind returns the primitive kind decoded.
func (*Primitive[T]) Kind() Kind { return KindOf[T]() }

// Size returns sizeof(T).
func (*Primitive[T]) Size() int { return sizeOf[T]() }

// Decode reads the value at the front of b.
func (p *Primitive[T]) Decode(b []byte) (T, error) {
	if err := checkSize(b, p.Size()); err != nil {
		var zero T
		return zero, err
	}
	return load[T](b), nil
}

func (p *Primitive[T]) Render(f *Format, b []byte) (string, int, error) {
	v, err := p.Decode(b)
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf(f.Specifier(p.Kind()), v), p.Size(), nil
}

func (p *Primitive[T]) Values(prefix string, b []byte) ([]NamedValue, int, error) {
	v, err := p.Decode(b)
	if err != nil {
		return nil, 0, err
	}
	return []NamedValue{{Name: prefix, Value: canonical(v)}}, p.Size(), nil
}

func (p *Primitive[T]) WriteFormatted(w io.Writer, f *Format, b []byte) (int, error) {
	v, err := p.Decode(b)
	if err != nil {
		return 0, err
	}
	if _, err := fmt.Fprintf(w, f.Specifier(p.Kind()), v); err != nil {
		return 0, ioFailure(err)
	}
	return p.Size(), nil
}
