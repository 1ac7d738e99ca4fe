package binparse

import "errors"

var (
	// ErrNilIO indicates that NewSink/NewRecordReader was called with a nil io.Writer/io.Reader.
	ErrNilIO = errors.New("binparse: NewSink/NewRecordReader called with a nil io.Writer/io.Reader")

	// ErrAlreadyBuffered indicates that NewSink was called with a bufio.Writer smaller than
	// the requested size, which would lead to unpredictable double-buffering.
	ErrAlreadyBuffered = errors.New("binparse: writer is already buffered")

	// ErrSchemaInvalid indicates the schema document could not be parsed, referenced a key
	// that is absent from the document, or declared an unsupported type.
	ErrSchemaInvalid = errors.New("binparse: invalid schema")

	// ErrSchemaCycle indicates a struct type that transitively references itself.
	ErrSchemaCycle = errors.New("binparse: schema type cycle")

	// ErrInvalidCompiler is returned by Compile once the compiler has become invalid.
	// It is always joined with the error that invalidated the compiler.
	ErrInvalidCompiler = errors.New("binparse: compiler is invalid")

	// ErrShortBuffer indicates a decode operation received a nil buffer, or one shorter
	// than the decoder needs. A string window without a NUL terminator is also short.
	ErrShortBuffer = errors.New("binparse: null or short buffer")

	// ErrIO indicates the output sink failed while writing formatted values.
	ErrIO = errors.New("binparse: output sink failed")

	// ErrNilFormat indicates a setter was called on a nil *Format.
	ErrNilFormat = errors.New("binparse: nil format")

	// ErrUnknownKind indicates a primitive kind outside the supported set.
	ErrUnknownKind = errors.New("binparse: unknown primitive kind")

	// ErrInvalidRecordSize indicates NewRecordReader was called with a non-positive record size.
	ErrInvalidRecordSize = errors.New("binparse: record size must be positive")
)
