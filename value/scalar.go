package value

import (
	"encoding/json"
	"fmt"
)

// Scalar is the type used to represent all scalar JSON values, i.e.
// - strings
// - numbers
// - booleans (to values)
// - null (a single value)
//
// The type is encoded in the TypeAndFlags field, while the Bytes fields
// contains the literal representation of the value as found in the input.
type Scalar struct {

	// Literal representation of the value, e.g.
	// - the string "foo" is represented as []byte("\"foo\"")
	// - the number 123.5 is represented as []byte("123.5")
	// - the boolean true is represented as []byte("true")
	Bytes []byte

	// Type of the value
	TypeAndFlags uint8
}

var _ Value = &Scalar{}

const (
	TypeMask      = 0b00011
	UnescapedMask = 0b10000
)

func NewScalar(k Kind, bytes []byte) *Scalar {
	if !k.IsScalar() {
		panic("not a scalar kind: " + k.String())
	}
	return &Scalar{
		Bytes:        bytes,
		TypeAndFlags: uint8(k),
	}
}

// NewString returns a string scalar for a literal (quotes included).
// unescaped must be true only if the literal contains no backslash.
func NewString(literal []byte, unescaped bool) *Scalar {
	s := NewScalar(String, literal)
	if unescaped {
		s.TypeAndFlags |= UnescapedMask
	}
	return s
}

func (s *Scalar) Kind() Kind {
	return Kind(s.TypeAndFlags & TypeMask)
}

// IsUnescaped is true for string literals with no escape sequence, whose
// contents are therefore the bytes between the quotes.
func (s *Scalar) IsUnescaped() bool {
	return UnescapedMask&s.TypeAndFlags != 0
}

func (s *Scalar) String() string {
	return fmt.Sprintf("Scalar(%s)", s.Bytes)
}

// ToString decodes a string literal.  It panics if s is not a string.
func (s *Scalar) ToString() string {
	if s.Kind() != String {
		panic("not a string: " + s.Kind().String())
	}
	if s.IsUnescaped() {
		return string(s.Bytes[1 : len(s.Bytes)-1])
	}
	var str string
	if err := json.Unmarshal(s.Bytes, &str); err != nil {
		panic(err)
	}
	return str
}

var (
	trueBytes  = []byte("true")
	falseBytes = []byte("false")
	nullBytes  = []byte("null")
)

var (
	TrueScalar  = NewScalar(Bool, trueBytes)
	FalseScalar = NewScalar(Bool, falseBytes)
	NullScalar  = NewScalar(Null, nullBytes)
)
