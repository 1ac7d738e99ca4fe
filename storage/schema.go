// Package storage drives compiled record decoders over captured data: the
// Converter turns a capture file into CSV, and the Task acquires records from a
// receiver into a capture file.
package storage

import (
	"fmt"
	"os"

	"github.com/oy3o/binparse"
)

// CompileSchema reads a schema document from path and compiles its record
// layout. The document format follows the file extension.
func CompileSchema(path string, opts ...binparse.Option) (*binparse.Sequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema %s: %w", path, err)
	}
	doc, err := binparse.ParseDocument(path, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	seq, err := binparse.NewCompiler(doc, opts...).Compile()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if seq.Size() == 0 {
		return nil, fmt.Errorf("%s: %w: record has no fixed width", path, binparse.ErrSchemaInvalid)
	}
	return seq, nil
}
