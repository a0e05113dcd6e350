// Package value is the in-memory model of a parsed JSON record.
//
// A record such as
//
//	{"id": 123, "tags": ["important", "new"]}
//
// is represented as a *Map whose "id" entry is a *Scalar holding the bytes
// "123" and whose "tags" entry is a List of two *Scalar strings.  Scalars
// keep the literal text found in the input rather than a Go representation, so
// a record can be inspected without losing the exact form of its values.
package value

import "fmt"

// Kind encodes the six possible JSON value types.
type Kind uint8

const (
	Null   Kind = 0x0 // the type of JSON null
	Bool   Kind = 0x1 // a JSON boolean
	Number Kind = 0x2 // a JSON number
	String Kind = 0x3 // a JSON string
	Array  Kind = 0x4 // a JSON array
	Object Kind = 0x5 // a JSON object
)

var kindNames = [...]string{"null", "bool", "number", "string", "array", "object"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsScalar is true for the four kinds represented by *Scalar.
func (k Kind) IsScalar() bool {
	return k <= String
}

// A Value is any JSON value: *Scalar, List or *Map.
type Value interface {
	Kind() Kind
}

// List is a JSON array.
type List []Value

var _ Value = List(nil)

func (l List) Kind() Kind {
	return Array
}

// Map is a JSON object.  Keys are unique; when the input repeats a key the
// last occurrence wins.  Key order is not kept.
type Map struct {
	entries map[string]Value
}

var _ Value = &Map{}

// NewMap returns an empty object with room for n keys.
func NewMap(n int) *Map {
	return &Map{entries: make(map[string]Value, n)}
}

func (m *Map) Kind() Kind {
	return Object
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	v, ok := m.entries[key]
	return v, ok
}

// Set stores v under key, replacing any previous value.
func (m *Map) Set(key string, v Value) {
	m.entries[key] = v
}

// Len is the number of distinct keys.
func (m *Map) Len() int {
	return len(m.entries)
}
