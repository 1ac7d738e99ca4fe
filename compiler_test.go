package binparse

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const pointSchema = `{
	// a record holding one nested point
	"TypeDescription": [
		{"name": "id", "type": "uint16_t"},
		{"name": "p", "type": "struct", "concreteType": "Point"},
		{"name": "raw", "type": "uint8_t[3]"},
	],
	"Point": [
		{"name": "x", "type": "float"},
		{"name": "y", "type": "float"}
	],
	"Unused": 42
}`

type CompilerTestSuite struct {
	suite.Suite
}

func TestCompilerTestSuite(t *testing.T) {
	suite.Run(t, new(CompilerTestSuite))
}

func (s *CompilerTestSuite) compile(text string) (*Sequence, error) {
	return NewCompilerFromText([]byte(text)).Compile()
}

func (s *CompilerTestSuite) TestNestedStruct() {
	c := NewCompilerFromText([]byte(pointSchema))
	s.Require().True(c.Valid())

	seq, err := c.Compile()
	s.Require().NoError(err)
	s.Equal(2+8+3, seq.Size())
	s.Equal([]string{"id", "p.x", "p.y", "raw[0]", "raw[1]", "raw[2]"}, seq.Names(""))

	buf := Append(nil, uint16(7))
	buf = Append(Append(buf, float32(1)), float32(-2.5))
	buf = append(buf, 1, 2, 3)

	values, n, err := seq.Values("", buf)
	s.Require().NoError(err)
	s.Equal(len(buf), n)
	s.Equal([]NamedValue{
		{Name: "id", Value: "7"},
		{Name: "p.x", Value: "1.000000"},
		{Name: "p.y", Value: "-2.500000"},
		{Name: "raw[0]", Value: "1"},
		{Name: "raw[1]", Value: "2"},
		{Name: "raw[2]", Value: "3"},
	}, values)
}

func (s *CompilerTestSuite) TestCompileIsIdempotent() {
	c := NewCompilerFromText([]byte(pointSchema))

	first, err := c.Compile()
	s.Require().NoError(err)
	entries := c.Registry().Len()

	second, err := c.Compile()
	s.Require().NoError(err)

	s.NotSame(first, second, "every compile returns a fresh top-level sequence")
	s.Equal(first.Names(""), second.Names(""))
	s.Equal(entries, c.Registry().Len(), "nothing new is cached")

	_, p1 := first.Member(1)
	_, p2 := second.Member(1)
	s.Same(p1, p2, "nested decoders are shared")

	point, ok := c.Registry().Lookup("Point")
	s.Require().True(ok)
	s.Same(point, p1)
	_, ok = c.Registry().Lookup("uint8_t[3]")
	s.True(ok)
}

func (s *CompilerTestSuite) TestSharedStructAppearsTwice() {
	seq, err := s.compile(`{
		"TypeDescription": [
			{"name": "a", "type": "struct", "concreteType": "Pair"},
			{"name": "b", "type": "struct", "concreteType": "Pair"}
		],
		"Pair": [{"name": "l", "type": "int8_t"}, {"name": "r", "type": "int8_t"}]
	}`)
	s.Require().NoError(err)
	s.Equal(4, seq.Size())
	s.Equal([]string{"a.l", "a.r", "b.l", "b.r"}, seq.Names(""))
}

func (s *CompilerTestSuite) TestCycle() {
	c := NewCompilerFromText([]byte(`{
		"TypeDescription": [{"name": "a", "type": "struct", "concreteType": "A"}],
		"A": [{"name": "b", "type": "struct", "concreteType": "B"}],
		"B": [{"name": "a", "type": "struct", "concreteType": "A"}]
	}`))

	_, err := c.Compile()
	s.Require().ErrorIs(err, ErrSchemaCycle)
	s.Contains(err.Error(), "TypeDescription -> A -> B -> A")
	s.False(c.Valid())

	_, err = c.Compile()
	s.ErrorIs(err, ErrInvalidCompiler)
	s.ErrorIs(err, ErrSchemaCycle)
}

func (s *CompilerTestSuite) TestSelfReference() {
	_, err := s.compile(`{
		"TypeDescription": [{"name": "n", "type": "struct", "concreteType": "Node"}],
		"Node": [{"name": "next", "type": "struct", "concreteType": "Node"}]
	}`)
	s.ErrorIs(err, ErrSchemaCycle)
}

func (s *CompilerTestSuite) TestInvalidSchemas() {
	cases := map[string]string{
		"MissingRoot":      `{"Other": []}`,
		"MissingStruct":    `{"TypeDescription": [{"name": "p", "type": "struct", "concreteType": "Nowhere"}]}`,
		"NoConcreteType":   `{"TypeDescription": [{"name": "p", "type": "struct"}]}`,
		"UnsupportedType":  `{"TypeDescription": [{"name": "s", "type": "string"}]}`,
		"UnknownPrimitive": `{"TypeDescription": [{"name": "v", "type": "int128_t"}]}`,
		"BadArrayElement":  `{"TypeDescription": [{"name": "v", "type": "char[4]"}]}`,
		"ZeroArray":        `{"TypeDescription": [{"name": "v", "type": "int8_t[0]"}]}`,
		"NotAFieldList":    `{"TypeDescription": 42}`,
		"NoName":           `{"TypeDescription": [{"type": "int8_t"}]}`,
		"NoType":           `{"TypeDescription": [{"name": "v"}]}`,
		"PrimitiveKey":     `{"TypeDescription": [{"name": "v", "type": "struct", "concreteType": "float"}], "float": []}`,
		"ArrayKey":         `{"TypeDescription": [{"name": "v", "type": "struct", "concreteType": "P[2]"}], "P[2]": []}`,
		"StructKey":        `{"TypeDescription": [{"name": "v", "type": "struct", "concreteType": "struct"}], "struct": []}`,
	}
	for name, text := range cases {
		s.Run(name, func() {
			c := NewCompilerFromText([]byte(text))
			_, err := c.Compile()
			s.ErrorIs(err, ErrSchemaInvalid)
			s.False(c.Valid())

			_, err = c.Compile()
			s.ErrorIs(err, ErrInvalidCompiler)
		})
	}
}

func (s *CompilerTestSuite) TestInvalidText() {
	c := NewCompilerFromText([]byte(`{"TypeDescription": [`))
	s.False(c.Valid())
	s.ErrorIs(c.Err(), ErrSchemaInvalid)

	_, err := c.Compile()
	s.ErrorIs(err, ErrInvalidCompiler)
	s.ErrorIs(err, ErrSchemaInvalid)
}

func (s *CompilerTestSuite) TestNilDocument() {
	c := NewCompiler(nil)
	s.False(c.Valid())
	_, err := c.Compile()
	s.ErrorIs(err, ErrInvalidCompiler)
}

func (s *CompilerTestSuite) TestErrorNamesTheField() {
	_, err := s.compile(`{
		"TypeDescription": [
			{"name": "ok", "type": "int8_t"},
			{"name": "bad", "type": "wat"}
		]
	}`)
	s.Require().Error(err)
	s.Contains(err.Error(), `TypeDescription[1] "bad"`)
	s.Contains(err.Error(), `"wat"`)
}

func (s *CompilerTestSuite) TestRegisteredType() {
	r := NewPrimitiveRegistry()
	r.Register("string", NewString())

	seq, err := NewCompilerFromText([]byte(`{
		"TypeDescription": [
			{"name": "label", "type": "string"},
			{"name": "v", "type": "int32_t"}
		]
	}`), WithRegistry(r)).Compile()
	s.Require().NoError(err)
	s.Equal(4, seq.Size())

	buf := Append([]byte("hi\x00"), int32(-1))
	values, n, err := seq.Values("", buf)
	s.Require().NoError(err)
	s.Equal(7, n)
	s.Equal([]NamedValue{{Name: "label", Value: "hi"}, {Name: "v", Value: "-1"}}, values)
}

func (s *CompilerTestSuite) TestMaxDepth() {
	text := `{
		"TypeDescription": [{"name": "a", "type": "struct", "concreteType": "A"}],
		"A": [{"name": "b", "type": "struct", "concreteType": "B"}],
		"B": [{"name": "v", "type": "int8_t"}]
	}`
	_, err := NewCompilerFromText([]byte(text), WithMaxDepth(2)).Compile()
	s.ErrorIs(err, ErrSchemaInvalid)

	seq, err := NewCompilerFromText([]byte(text), WithMaxDepth(3)).Compile()
	s.Require().NoError(err)
	s.Equal([]string{"a.b.v"}, seq.Names(""))
}

func (s *CompilerTestSuite) TestArrayCountOverflow() {
	c := NewCompilerFromText([]byte(`{"TypeDescription": [{"name": "a", "type": "int64_t[2305843009213693953]"}]}`))
	_, err := c.Compile()
	s.ErrorIs(err, ErrSchemaInvalid)
	s.False(c.Valid())
}

func (s *CompilerTestSuite) TestRecordWidthOverflow() {
	// each member alone fits in an int, together they do not
	half := strconv.Itoa(MaxArrayLen(Uint8)/2 + 1)
	_, err := s.compile(`{"TypeDescription": [
		{"name": "a", "type": "uint8_t[` + half + `]"},
		{"name": "b", "type": "uint8_t[` + half + `]"}
	]}`)
	s.Require().ErrorIs(err, ErrSchemaInvalid)
	s.Contains(err.Error(), `"b"`)
}

func (s *CompilerTestSuite) TestLargeArrayWidth() {
	count := MaxArrayLen(Int32)
	seq, err := s.compile(`{"TypeDescription": [{"name": "a", "type": "int32_t[` + strconv.Itoa(count) + `]"}]}`)
	s.Require().NoError(err)
	s.Equal(count*4, seq.Size())
	s.LessOrEqual(seq.Size(), math.MaxInt)

	_, _, err = seq.Values("", make([]byte, 16))
	s.ErrorIs(err, ErrShortBuffer)
}

func (s *CompilerTestSuite) TestNestedArraySyntax() {
	_, err := s.compile(`{"TypeDescription": [{"name": "m", "type": "int32_t[3][4]"}]}`)
	s.ErrorIs(err, ErrSchemaInvalid)
}

func (s *CompilerTestSuite) TestEmptyRecord() {
	seq, err := s.compile(`{"TypeDescription": []}`)
	s.Require().NoError(err)
	s.Zero(seq.Size())
	s.Empty(seq.Names(""))
}

func TestMapDocument(t *testing.T) {
	doc := MapDocument{
		RootKey: {{Name: "v", Type: "double[2]"}},
	}
	seq, err := NewCompiler(doc).Compile()
	require.NoError(t, err)
	assert.Equal(t, 16, seq.Size())

	_, err = doc.Fields("absent")
	assert.ErrorIs(t, err, ErrSchemaInvalid)
}
