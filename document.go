package binparse

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// RootKey is the document key holding the field list of a whole record.
const RootKey = "TypeDescription"

// FieldDesc describes one field: its name, its type, and for struct fields the
// document key holding the nested field list.
type FieldDesc struct {
	Name         string `json:"name" yaml:"name" cbor:"name"`
	Type         string `json:"type" yaml:"type" cbor:"type"`
	ConcreteType string `json:"concreteType,omitempty" yaml:"concreteType,omitempty" cbor:"concreteType,omitempty"`
}

// Document is a parsed schema: a set of keys, each holding an ordered field list.
// Fields fails with ErrSchemaInvalid when key is absent or does not hold a field list.
type Document interface {
	Fields(key string) ([]FieldDesc, error)
}

// MapDocument is a Document built in memory.
type MapDocument map[string][]FieldDesc

func (d MapDocument) Fields(key string) ([]FieldDesc, error) {
	fields, ok := d[key]
	if !ok {
		return nil, missingKey(key)
	}
	return fields, nil
}

func missingKey(key string) error {
	return fmt.Errorf("%w: key %q not found in document", ErrSchemaInvalid, key)
}

func badFieldList(key string, err error) error {
	return fmt.Errorf("%w: key %q is not a field list: %w", ErrSchemaInvalid, key, err)
}

// Each top-level value is kept raw and decoded on first reference, so keys that
// hold anything other than a field list are harmless until referenced.

type jsonDocument map[string]json.RawMessage

// ParseJSON parses a JSON schema document. Comments and trailing commas are
// accepted.
func ParseJSON(data []byte) (Document, error) {
	var doc jsonDocument
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing JSON: %w", ErrSchemaInvalid, err)
	}
	return doc, nil
}

func (d jsonDocument) Fields(key string) ([]FieldDesc, error) {
	raw, ok := d[key]
	if !ok {
		return nil, missingKey(key)
	}
	var fields []FieldDesc
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, badFieldList(key, err)
	}
	return fields, nil
}

type yamlDocument map[string]yaml.Node

// ParseYAML parses a YAML schema document of the same shape as the JSON one.
func ParseYAML(data []byte) (Document, error) {
	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing YAML: %w", ErrSchemaInvalid, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: empty YAML document", ErrSchemaInvalid)
	}
	return doc, nil
}

func (d yamlDocument) Fields(key string) ([]FieldDesc, error) {
	node, ok := d[key]
	if !ok {
		return nil, missingKey(key)
	}
	var fields []FieldDesc
	if err := node.Decode(&fields); err != nil {
		return nil, badFieldList(key, err)
	}
	return fields, nil
}

type cborDocument map[string]cbor.RawMessage

// ParseCBOR parses a CBOR schema document: a map of text keys to arrays of
// field maps.
func ParseCBOR(data []byte) (Document, error) {
	var doc cborDocument
	if err := cbor.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing CBOR: %w", ErrSchemaInvalid, err)
	}
	return doc, nil
}

func (d cborDocument) Fields(key string) ([]FieldDesc, error) {
	raw, ok := d[key]
	if !ok {
		return nil, missingKey(key)
	}
	var fields []FieldDesc
	if err := cbor.Unmarshal(raw, &fields); err != nil {
		return nil, badFieldList(key, err)
	}
	return fields, nil
}

// ParseDocument picks a parser from the extension of path: .yaml/.yml, .cbor,
// and JSON for anything else.
func ParseDocument(path string, data []byte) (Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".cbor":
		return ParseCBOR(data)
	default:
		return ParseJSON(data)
	}
}
