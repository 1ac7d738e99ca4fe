package binparse

import (
	"strings"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
)

// DefaultDelimiter separates sibling values in formatted output.
const DefaultDelimiter = ", "

var defaultSpecifiers = [numKinds]string{
	Int8:   "%d",
	Int16:  "%d",
	Int32:  "%d",
	Int64:  "%d",
	Uint8:  "%d",
	Uint16: "%d",
	Uint32: "%d",
	Uint64: "%d",
	Float:  "%f",
	Double: "%f",
}

// Format holds the display specifier for every primitive kind and the delimiter
// placed between sibling values. It is safe for concurrent use. The zero value
// and a nil *Format read as the defaults; only the setters need a non-nil
// receiver.
//
// Every kind has exactly one active specifier. The last Set wins. Kinds that
// were never set report their default.
type Format struct {
	specifiers atomic.Pointer[xsync.Map[Kind, string]]
	delimiter  atomic.Pointer[string]
}

// NewFormat returns a Format populated with the default specifiers and delimiter.
func NewFormat() *Format {
	f := &Format{}
	table := f.table()
	for k, spec := range defaultSpecifiers {
		table.Store(Kind(k), spec)
	}
	delimiter := DefaultDelimiter
	f.delimiter.Store(&delimiter)
	return f
}

// table returns the specifier map, creating it on first use.
func (f *Format) table() *xsync.Map[Kind, string] {
	if m := f.specifiers.Load(); m != nil {
		return m
	}
	f.specifiers.CompareAndSwap(nil, xsync.NewMap[Kind, string]())
	return f.specifiers.Load()
}

// SetSpecifier replaces the active specifier for k. C printf forms such as
// "%hhd" or "%llu" are accepted and rewritten into fmt verbs. The specifier is
// not checked against k; a mismatched verb shows up in the output.
func (f *Format) SetSpecifier(k Kind, spec string) error {
	if f == nil {
		return ErrNilFormat
	}
	if !k.Valid() {
		return ErrUnknownKind
	}
	f.table().Store(k, NormalizeSpecifier(spec))
	return nil
}

// Specifier returns the active specifier for k.
func (f *Format) Specifier(k Kind) string {
	if !k.Valid() {
		return "%v"
	}
	if f == nil {
		return defaultSpecifiers[k]
	}
	if m := f.specifiers.Load(); m != nil {
		if spec, ok := m.Load(k); ok {
			return spec
		}
	}
	return defaultSpecifiers[k]
}

// SetDelimiter replaces the text written between sibling values.
func (f *Format) SetDelimiter(delimiter string) error {
	if f == nil {
		return ErrNilFormat
	}
	f.delimiter.Store(&delimiter)
	return nil
}

// Delimiter returns the text written between sibling values.
func (f *Format) Delimiter() string {
	if f == nil {
		return DefaultDelimiter
	}
	if d := f.delimiter.Load(); d != nil {
		return *d
	}
	return DefaultDelimiter
}

// NormalizeSpecifier rewrites C printf conversions into their fmt equivalent:
// length modifiers (h, hh, l, ll, L, q, j, z, t) are dropped and the u and i
// conversions become d. Go verbs pass through unchanged.
//
//	NormalizeSpecifier("%hhu")  // "%d"
//	NormalizeSpecifier("%.2lf") // "%.2f"
func NormalizeSpecifier(spec string) string {
	if strings.IndexByte(spec, '%') < 0 {
		return spec
	}

	var b strings.Builder
	b.Grow(len(spec))
	for i := 0; i < len(spec); i++ {
		c := spec[i]
		b.WriteByte(c)
		if c != '%' {
			continue
		}
		if i+1 < len(spec) && spec[i+1] == '%' {
			b.WriteByte('%')
			i++
			continue
		}

		j := i + 1
		// flags, width and precision
		for j < len(spec) && strings.IndexByte("+-# 0123456789.", spec[j]) >= 0 {
			b.WriteByte(spec[j])
			j++
		}
		for j < len(spec) && strings.IndexByte("hlLqjzt", spec[j]) >= 0 {
			j++
		}
		if j < len(spec) {
			switch spec[j] {
			case 'u', 'i':
				b.WriteByte('d')
			default:
				b.WriteByte(spec[j])
			}
			j++
		}
		i = j - 1
	}
	return b.String()
}
