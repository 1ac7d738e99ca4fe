package binparse

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"golang.org/x/exp/constraints"
)

// Order is the byte order primitives are read in. Records are decoded on a host
// sharing the byte order of the host that produced them, so no conversion happens.
var Order binary.ByteOrder = binary.NativeEndian

const BUFFER_SIZE = 4096

// checkSize fails with ErrShortBuffer when b holds fewer than n bytes.
// A nil buffer is a zero-length buffer.
func checkSize(b []byte, n int) error {
	if len(b) < n {
		if b == nil {
			return fmt.Errorf("%w: nil buffer, need %d bytes", ErrShortBuffer, n)
		}
		return fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, n, len(b))
	}
	return nil
}

func sizeOf[T Number]() int { return KindOf[T]().Size() }

// load reads a T from the front of b. The caller has checked the length.
func load[T Number](b []byte) T {
	var v T
	switch p := any(&v).(type) {
	case *int8:
		*p = int8(b[0])
	case *uint8:
		*p = b[0]
	case *int16:
		*p = int16(Order.Uint16(b))
	case *uint16:
		*p = Order.Uint16(b)
	case *int32:
		*p = int32(Order.Uint32(b))
	case *uint32:
		*p = Order.Uint32(b)
	case *int64:
		*p = int64(Order.Uint64(b))
	case *uint64:
		*p = Order.Uint64(b)
	case *float32:
		*p = math.Float32frombits(Order.Uint32(b))
	case *float64:
		*p = math.Float64frombits(Order.Uint64(b))
	}
	return v
}

// canonical renders v the way named values are reported, independent of any
// Format: integers in decimal, floats with six fractional digits.
func canonical[T Number](v T) string {
	switch x := any(v).(type) {
	case int8:
		return signedText(x)
	case int16:
		return signedText(x)
	case int32:
		return signedText(x)
	case int64:
		return signedText(x)
	case uint8:
		return unsignedText(x)
	case uint16:
		return unsignedText(x)
	case uint32:
		return unsignedText(x)
	case uint64:
		return unsignedText(x)
	case float32:
		return floatText(x)
	case float64:
		return floatText(x)
	}
	return ""
}

func signedText[T constraints.Signed](v T) string { return strconv.FormatInt(int64(v), 10) }

func unsignedText[T constraints.Unsigned](v T) string { return strconv.FormatUint(uint64(v), 10) }

func floatText[T constraints.Float](v T) string {
	return strconv.FormatFloat(float64(v), 'f', 6, 64)
}

// Put encodes v into the front of b in Order and returns the number of bytes written.
// It is the inverse of the primitive decoders and is mostly useful to build records.
func Put[T Number](b []byte, v T) (int, error) {
	n := sizeOf[T]()
	if err := checkSize(b, n); err != nil {
		return 0, err
	}
	switch x := any(v).(type) {
	case int8:
		b[0] = byte(x)
	case uint8:
		b[0] = x
	case int16:
		Order.PutUint16(b, uint16(x))
	case uint16:
		Order.PutUint16(b, x)
	case int32:
		Order.PutUint32(b, uint32(x))
	case uint32:
		Order.PutUint32(b, x)
	case int64:
		Order.PutUint64(b, uint64(x))
	case uint64:
		Order.PutUint64(b, x)
	case float32:
		Order.PutUint32(b, math.Float32bits(x))
	case float64:
		Order.PutUint64(b, math.Float64bits(x))
	}
	return n, nil
}

// Append is Put on a growing slice.
func Append[T Number](b []byte, v T) []byte {
	n := sizeOf[T]()
	b = append(b, make([]byte, n)...)
	_, _ = Put(b[len(b)-n:], v)
	return b
}
