package binparse

import (
	"fmt"
	"strings"
	"sync"
)

// DefaultMaxDepth bounds struct nesting during compilation.
const DefaultMaxDepth = 64

// Option configures a Compiler.
type Option func(*Compiler)

// WithRegistry makes the compiler resolve and cache types in r instead of a
// fresh primitive registry. The primitives are not added to r.
func WithRegistry(r *Registry) Option {
	return func(c *Compiler) { c.registry = r }
}

// WithMaxDepth bounds how deeply structs may nest.
func WithMaxDepth(n int) Option {
	return func(c *Compiler) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}

// Compiler turns a schema Document into a Sequence decoding one record.
//
// A compiler is valid until the document fails to parse or a compilation fails
// with ErrSchemaInvalid or ErrSchemaCycle; after that every Compile fails with
// ErrInvalidCompiler joined with the original error.
//
// Struct and array decoders built while compiling are cached in the registry,
// so repeated compilations are cheap and reuse the same decoders.
type Compiler struct {
	doc      Document
	registry *Registry
	maxDepth int

	mu  sync.Mutex
	err error // first error encountered. Subsequent compiles fail with it.
}

// NewCompiler returns a compiler for doc. A nil doc yields an invalid compiler.
func NewCompiler(doc Document, opts ...Option) *Compiler {
	c := &Compiler{doc: doc, maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = NewPrimitiveRegistry()
	}
	if doc == nil {
		c.err = fmt.Errorf("%w: nil document", ErrSchemaInvalid)
	}
	return c
}

// NewCompilerFromText parses JSON schema text and returns a compiler for it.
// If the text does not parse the compiler is invalid and Err reports why.
func NewCompilerFromText(text []byte, opts ...Option) *Compiler {
	doc, err := ParseJSON(text)
	c := NewCompiler(doc, opts...)
	if err != nil {
		c.err = err
	}
	return c
}

// Valid reports whether Compile may still be called.
func (c *Compiler) Valid() bool { return c.Err() == nil }

// Err returns the error that invalidated the compiler, if any.
func (c *Compiler) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Registry returns the registry the compiler resolves type names in. Decoders
// registered before Compile become available as schema types.
func (c *Compiler) Registry() *Registry { return c.registry }

// setError records the first non-nil error.
func (c *Compiler) setError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil && err != nil {
		c.err = err
	}
}

// Compile builds a new Sequence for the RootKey field list. Each call returns a
// fresh top-level Sequence; nested decoders are shared through the registry.
func (c *Compiler) Compile() (*Sequence, error) {
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCompiler, err)
	}
	seq, err := c.compose(RootKey, &walk{resolving: make(map[string]bool)})
	if err != nil {
		c.setError(err)
		return nil, err
	}
	return seq, nil
}

// walk tracks the struct keys being resolved on the current path.
type walk struct {
	resolving map[string]bool
	path      []string
}

func (w *walk) enter(key string) error {
	if w.resolving[key] {
		return fmt.Errorf("%w: %s -> %s", ErrSchemaCycle, strings.Join(w.path, " -> "), key)
	}
	w.resolving[key] = true
	w.path = append(w.path, key)
	return nil
}

func (w *walk) leave(key string) {
	delete(w.resolving, key)
	w.path = w.path[:len(w.path)-1]
}

func (c *Compiler) compose(key string, w *walk) (*Sequence, error) {
	if err := w.enter(key); err != nil {
		return nil, err
	}
	defer w.leave(key)

	if len(w.path) > c.maxDepth {
		return nil, fmt.Errorf("%w: struct nesting deeper than %d at %q", ErrSchemaInvalid, c.maxDepth, key)
	}

	fields, err := c.doc.Fields(key)
	if err != nil {
		return nil, err
	}

	seq := NewSequence()
	for i, field := range fields {
		d, err := c.resolve(field, w)
		if err != nil {
			return nil, fmt.Errorf("%s[%d] %q: %w", key, i, field.Name, err)
		}
		if err := seq.Add(field.Name, d); err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
		}
	}
	return seq, nil
}

// resolve finds or builds the decoder for one field. The cache key is the type
// name, or the concreteType for struct fields.
func (c *Compiler) resolve(field FieldDesc, w *walk) (Decoder, error) {
	if field.Name == "" {
		return nil, fmt.Errorf("%w: field has no name", ErrSchemaInvalid)
	}
	if field.Type == "" {
		return nil, fmt.Errorf("%w: field has no type", ErrSchemaInvalid)
	}

	key := field.Type
	if IsStructType(field.Type) {
		key = field.ConcreteType
		if err := checkStructKey(key); err != nil {
			return nil, err
		}
	}

	if d, ok := c.registry.Lookup(key); ok {
		return d, nil
	}

	var d Decoder
	switch {
	case IsStructType(field.Type):
		seq, err := c.compose(key, w)
		if err != nil {
			return nil, err
		}
		d = seq
	case IsArrayType(field.Type):
		arr, err := c.registry.ResolveArray(key)
		if err != nil {
			return nil, err
		}
		d = arr
	default:
		return nil, fmt.Errorf("%w: unsupported type %q", ErrSchemaInvalid, field.Type)
	}

	d, _ = c.registry.Register(key, d)
	return d, nil
}

// checkStructKey keeps struct keys out of the primitive and array namespaces
// so a struct never collides with a different decoder cached under the same name.
func checkStructKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: struct field has no concreteType", ErrSchemaInvalid)
	}
	if _, ok := ParseKind(key); ok || IsArrayType(key) || IsStructType(key) {
		return fmt.Errorf("%w: concreteType %q collides with a built-in type name", ErrSchemaInvalid, key)
	}
	return nil
}
