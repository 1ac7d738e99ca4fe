package binparse

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Array decodes count contiguous values of type T. The count is fixed at
// construction.
type Array[T Number] struct {
	count int
}

// NewArray returns the decoder for a T[count]. A negative count is treated as
// zero and a count wider than an int is clamped to MaxArrayLen; NewArrayOf
// rejects such counts instead.
func NewArray[T Number](count int) *Array[T] {
	return &Array[T]{count: min(max(count, 0), MaxArrayLen(KindOf[T]()))}
}

func (*Array[T]) decoder() {}

// Kind returns the element kind.
func (*Array[T]) Kind() Kind { return KindOf[T]() }

// Len returns the element count.
func (a *Array[T]) Len() int { return a.count }

// Size returns count * sizeof(T).
func (a *Array[T]) Size() int { return a.count * sizeOf[T]() }

// Decode reads every element at the front of b.
func (a *Array[T]) Decode(b []byte) ([]T, error) {
	if err := checkSize(b, a.Size()); err != nil {
		return nil, err
	}
	step := sizeOf[T]()
	values := make([]T, a.count)
	for i, offset := 0, 0; i < a.count; i, offset = i+1, offset+step {
		values[i] = load[T](b[offset:])
	}
	return values, nil
}

// Render writes each element with the same specifier back to back, no delimiter.
func (a *Array[T]) Render(f *Format, b []byte) (string, int, error) {
	values, err := a.Decode(b)
	if err != nil {
		return "", 0, err
	}
	spec := f.Specifier(a.Kind())
	var sb strings.Builder
	for _, v := range values {
		fmt.Fprintf(&sb, spec, v)
	}
	return sb.String(), a.Size(), nil
}

// Values reports prefix[0] .. prefix[count-1].
func (a *Array[T]) Values(prefix string, b []byte) ([]NamedValue, int, error) {
	values, err := a.Decode(b)
	if err != nil {
		return nil, 0, err
	}
	named := make([]NamedValue, len(values))
	for i, v := range values {
		named[i] = NamedValue{Name: indexName(prefix, i), Value: canonical(v)}
	}
	return named, a.Size(), nil
}

// WriteFormatted writes the elements separated by the Format delimiter.
func (a *Array[T]) WriteFormatted(w io.Writer, f *Format, b []byte) (int, error) {
	values, err := a.Decode(b)
	if err != nil {
		return 0, err
	}
	spec, delimiter := f.Specifier(a.Kind()), f.Delimiter()
	for i, v := range values {
		if i > 0 {
			if _, err := io.WriteString(w, delimiter); err != nil {
				return 0, ioFailure(err)
			}
		}
		if _, err := fmt.Fprintf(w, spec, v); err != nil {
			return 0, ioFailure(err)
		}
	}
	return a.Size(), nil
}

func indexName(prefix string, i int) string {
	return prefix + "[" + strconv.Itoa(i) + "]"
}
