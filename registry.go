package binparse

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"
)

// StructType is the schema type that marks a field as a nested struct whose
// layout lives under the field's concreteType key.
const StructType = "struct"

// IsArrayType reports whether name uses the array syntax "elem[N]".
func IsArrayType(name string) bool {
	return strings.IndexByte(name, '[') >= 0 && strings.IndexByte(name, ']') >= 0
}

// IsStructType reports whether name is the struct sentinel.
func IsStructType(name string) bool { return name == StructType }

// ParseArrayType splits "elem[N]" into its element type and count. The element
// type is everything before the first '['; the count is the text between the
// first '[' and the first ']', and must be a positive decimal integer. Nothing
// may follow the ']', so "int32_t[3][4]" is rejected.
func ParseArrayType(name string) (string, int, error) {
	open, closing := strings.IndexByte(name, '['), strings.IndexByte(name, ']')
	if open < 0 || closing < open {
		return "", 0, fmt.Errorf("%w: %q is not an array type", ErrSchemaInvalid, name)
	}
	if closing != len(name)-1 {
		return "", 0, fmt.Errorf("%w: array type %q has text after ']'", ErrSchemaInvalid, name)
	}
	count, err := strconv.Atoi(strings.TrimSpace(name[open+1 : closing]))
	if err != nil || count <= 0 {
		return "", 0, fmt.Errorf("%w: array type %q has invalid length", ErrSchemaInvalid, name)
	}
	return name[:open], count, nil
}

// Registry maps type names to decoders. It is a memoization table: the first
// decoder registered under a name is kept for the lifetime of the registry and
// later registrations under that name are ignored. It is safe for concurrent use.
type Registry struct {
	entries *xsync.Map[string, Decoder]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: xsync.NewMap[string, Decoder]()}
}

// NewPrimitiveRegistry returns a registry seeded with a decoder for every
// primitive kind under its schema name.
func NewPrimitiveRegistry() *Registry {
	r := NewRegistry()
	for _, k := range Kinds() {
		d, _ := NewPrimitiveOf(k)
		r.Register(k.String(), d)
	}
	return r
}

// Lookup returns the decoder registered under name.
func (r *Registry) Lookup(name string) (Decoder, bool) {
	return r.entries.Load(name)
}

// Register stores d under name unless name is already present. It returns the
// decoder now held under name and whether it was already there.
func (r *Registry) Register(name string, d Decoder) (Decoder, bool) {
	return r.entries.LoadOrStore(name, d)
}

// Len returns the number of registered names.
func (r *Registry) Len() int { return r.entries.Size() }

// ResolveArray returns the decoder cached under the array type name, or builds
// a new Array for it. A built decoder is not cached; callers Register it.
func (r *Registry) ResolveArray(name string) (Decoder, error) {
	if d, ok := r.Lookup(name); ok {
		return d, nil
	}
	elem, count, err := ParseArrayType(name)
	if err != nil {
		return nil, err
	}
	k, ok := ParseKind(elem)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported array element type %q", ErrSchemaInvalid, elem)
	}
	return NewArrayOf(k, count)
}

// NewPrimitiveOf returns the Primitive decoder for k.
func NewPrimitiveOf(k Kind) (Decoder, error) {
	switch k {
	case Int8:
		return NewPrimitive[int8](), nil
	case Int16:
		return NewPrimitive[int16](), nil
	case Int32:
		return NewPrimitive[int32](), nil
	case Int64:
		return NewPrimitive[int64](), nil
	case Uint8:
		return NewPrimitive[uint8](), nil
	case Uint16:
		return NewPrimitive[uint16](), nil
	case Uint32:
		return NewPrimitive[uint32](), nil
	case Uint64:
		return NewPrimitive[uint64](), nil
	case Float:
		return NewPrimitive[float32](), nil
	case Double:
		return NewPrimitive[float64](), nil
	}
	return nil, ErrUnknownKind
}

// MaxArrayLen returns the largest element count of kind k whose width fits in
// an int.
func MaxArrayLen(k Kind) int {
	if !k.Valid() {
		return 0
	}
	return math.MaxInt / k.Size()
}

// NewArrayOf returns the Array decoder of count elements of kind k. A count
// whose width overflows an int is ErrSchemaInvalid.
func NewArrayOf(k Kind, count int) (Decoder, error) {
	if k.Valid() && count > MaxArrayLen(k) {
		return nil, fmt.Errorf("%w: %s[%d] is wider than %d bytes", ErrSchemaInvalid, k, count, math.MaxInt)
	}
	switch k {
	case Int8:
		return NewArray[int8](count), nil
	case Int16:
		return NewArray[int16](count), nil
	case Int32:
		return NewArray[int32](count), nil
	case Int64:
		return NewArray[int64](count), nil
	case Uint8:
		return NewArray[uint8](count), nil
	case Uint16:
		return NewArray[uint16](count), nil
	case Uint32:
		return NewArray[uint32](count), nil
	case Uint64:
		return NewArray[uint64](count), nil
	case Float:
		return NewArray[float32](count), nil
	case Double:
		return NewArray[float64](count), nil
	}
	return nil, ErrUnknownKind
}
