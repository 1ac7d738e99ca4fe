package binparse

import "fmt"

// Kind enumerates the primitive numeric types a schema may name.
type Kind uint8

const (
	Int8 Kind = iota
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float
	Double

	numKinds
)

var kindNames = [numKinds]string{
	Int8:   "int8_t",
	Int16:  "int16_t",
	Int32:  "int32_t",
	Int64:  "int64_t",
	Uint8:  "uint8_t",
	Uint16: "uint16_t",
	Uint32: "uint32_t",
	Uint64: "uint64_t",
	Float:  "float",
	Double: "double",
}

var kindSizes = [numKinds]int{1, 2, 4, 8, 1, 2, 4, 8, 4, 8}

// Kinds returns every supported primitive kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, numKinds)
	for i := range kinds {
		kinds[i] = Kind(i)
	}
	return kinds
}

// ParseKind maps a schema type name such as "uint16_t" to its Kind.
func ParseKind(name string) (Kind, bool) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), true
		}
	}
	return 0, false
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool { return k < numKinds }

// Size returns the width of k in bytes, or 0 for an invalid kind.
func (k Kind) Size() int {
	if !k.Valid() {
		return 0
	}
	return kindSizes[k]
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// Number is the set of Go types backing the primitive kinds.
type Number interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64
}

// KindOf returns the Kind backed by T.
func KindOf[T Number]() Kind {
	var v T
	switch any(v).(type) {
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case float32:
		return Float
	default:
		return Double
	}
}
