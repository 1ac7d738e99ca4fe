package binparse

import (
	"fmt"
	"io"
	"math"
	"strings"
)

type member struct {
	name    string
	decoder Decoder
}

// Sequence is an ordered composition of named decoders: one full record, or a
// nested structure inside one.
//
// Members are shared, not copied: a decoder held by a Registry may appear in any
// number of sequences. Field names are not required to be unique.
type Sequence struct {
	members []member
	size    int
}

// NewSequence returns an empty sequence.
func NewSequence() *Sequence { return &Sequence{} }

func (*Sequence) decoder() {}

// Add appends a named member and grows the sequence width by the member width.
// A member that would overflow the width is not added and fails with
// ErrSchemaInvalid.
func (s *Sequence) Add(name string, d Decoder) error {
	if d.Size() > math.MaxInt-s.size {
		return fmt.Errorf("%w: adding %q overflows the record width", ErrSchemaInvalid, name)
	}
	s.members = append(s.members, member{name: name, decoder: d})
	s.size += d.Size()
	return nil
}

// Size returns the sum of the member widths, maintained as members are added.
func (s *Sequence) Size() int { return s.size }

// Len returns the number of direct members.
func (s *Sequence) Len() int { return len(s.members) }

// Member returns the name and decoder of the i-th direct member.
func (s *Sequence) Member(i int) (string, Decoder) {
	m := s.members[i]
	return m.name, m.decoder
}

// Render concatenates the rendering of every member.
func (s *Sequence) Render(f *Format, b []byte) (string, int, error) {
	if err := checkSize(b, s.size); err != nil {
		return "", 0, err
	}
	var sb strings.Builder
	offset := 0
	for _, m := range s.members {
		text, n, err := m.decoder.Render(f, b[offset:])
		if err != nil {
			return "", 0, err
		}
		sb.WriteString(text)
		offset += n
	}
	return sb.String(), offset, nil
}

// Values concatenates the values of every member, qualifying member names with
// prefix: "prefix.name", or "name" at the top level.
func (s *Sequence) Values(prefix string, b []byte) ([]NamedValue, int, error) {
	if err := checkSize(b, s.size); err != nil {
		return nil, 0, err
	}
	var values []NamedValue
	offset := 0
	for _, m := range s.members {
		sub, n, err := m.decoder.Values(qualify(prefix, m.name), b[offset:])
		if err != nil {
			return nil, 0, err
		}
		values = append(values, sub...)
		offset += n
	}
	return values, offset, nil
}

// WriteFormatted writes every member with the Format delimiter between them.
func (s *Sequence) WriteFormatted(w io.Writer, f *Format, b []byte) (int, error) {
	if err := checkSize(b, s.size); err != nil {
		return 0, err
	}
	delimiter := f.Delimiter()
	offset := 0
	for i, m := range s.members {
		if i > 0 {
			if _, err := io.WriteString(w, delimiter); err != nil {
				return 0, ioFailure(err)
			}
		}
		n, err := m.decoder.WriteFormatted(w, f, b[offset:])
		if err != nil {
			return 0, err
		}
		offset += n
	}
	return offset, nil
}

// Names lists the qualified name of every leaf without decoding any data, in
// the order Values reports them. It is the header row of a record.
func (s *Sequence) Names(prefix string) []string {
	var names []string
	for _, m := range s.members {
		names = appendNames(names, qualify(prefix, m.name), m.decoder)
	}
	return names
}

func appendNames(names []string, name string, d Decoder) []string {
	switch v := d.(type) {
	case *Sequence:
		return append(names, v.Names(name)...)
	case interface{ Len() int }:
		for i := range v.Len() {
			names = append(names, indexName(name, i))
		}
		return names
	default:
		return append(names, name)
	}
}

func qualify(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
