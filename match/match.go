// Package match decides whether a parsed record satisfies a filter.
//
// A filter names a list of top-level fields, an operator and a needle.  A
// record matches when the rendering of at least one of the fields (see
// value.Render) contains the needle.
package match

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/arnodel/derrik/value"
)

// Operator selects how a haystack is compared with the needle.
type Operator uint8

const (
	// Contains is a case-sensitive substring test.
	Contains Operator = iota

	// IContains lower-cases the haystack before the substring test.  The
	// needle is used as given, so a needle containing upper-case letters
	// never matches.
	IContains
)

var operatorNames = [...]string{"contains", "icontains"}

func (o Operator) String() string {
	if int(o) < len(operatorNames) {
		return operatorNames[o]
	}
	return fmt.Sprintf("Operator(%d)", uint8(o))
}

// ErrUnknownOperator is returned by ParseOperator.
var ErrUnknownOperator = errors.New("unknown operator")

// ParseOperator returns the operator called name ("contains" or "icontains",
// in any case).  The empty string selects Contains.
func ParseOperator(name string) (Operator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "contains":
		return Contains, nil
	case "icontains":
		return IContains, nil
	default:
		return Contains, fmt.Errorf("%w %q (use contains or icontains)", ErrUnknownOperator, name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Operator) MarshalText() ([]byte, error) {
	if int(o) >= len(operatorNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOperator, uint8(o))
	}
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, so an Operator can be
// read from a config file.
func (o *Operator) UnmarshalText(text []byte) error {
	op, err := ParseOperator(string(text))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// Spec is the configuration of one filtering run.
type Spec struct {
	Fields   []string // candidate fields, tried in order
	Operator Operator
	Needle   string
}

var (
	ErrNoFields    = errors.New("at least one field is required")
	ErrEmptyField  = errors.New("field names cannot be empty")
	ErrEmptyNeedle = errors.New("the search string cannot be empty")
)

// Validate checks the invariants that Match relies on.
func (s Spec) Validate() error {
	if len(s.Fields) == 0 {
		return ErrNoFields
	}
	for _, f := range s.Fields {
		if f == "" {
			return ErrEmptyField
		}
	}
	if s.Needle == "" {
		return ErrEmptyNeedle
	}
	if int(s.Operator) >= len(operatorNames) {
		return fmt.Errorf("%w: %d", ErrUnknownOperator, uint8(s.Operator))
	}
	return nil
}

// A Matcher applies a validated Spec to records.
type Matcher struct {
	spec   Spec
	needle []byte
}

// New returns a matcher for spec, or the error from spec.Validate().
func New(spec Spec) (*Matcher, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	spec.Fields = append([]string(nil), spec.Fields...)
	return &Matcher{spec: spec, needle: []byte(spec.Needle)}, nil
}

// Match reports whether v satisfies the matcher's spec.
func (m *Matcher) Match(v value.Value) bool {
	_, ok := m.MatchField(v)
	return ok
}

// MatchField is like Match but also returns the first field that matched.
//
// Fields are tried in order.  A field missing from the record is skipped, as
// is a field holding an array or an object.  Values other than objects never
// match.
func (m *Matcher) MatchField(v value.Value) (string, bool) {
	obj, ok := v.(*value.Map)
	if !ok {
		return "", false
	}
	for _, field := range m.spec.Fields {
		fv, ok := obj.Get(field)
		if !ok {
			continue
		}
		haystack, ok := value.Render(fv)
		if !ok {
			continue
		}
		if m.contains(haystack) {
			return field, true
		}
	}
	return "", false
}

func (m *Matcher) contains(haystack []byte) bool {
	if m.spec.Operator == IContains {
		haystack = toLower(haystack)
	}
	return bytes.Contains(haystack, m.needle)
}

var (
	capitalIWithDot = []byte("\u0130")
	lowerIWithDot   = []byte("i\u0307")
)

// toLower is bytes.ToLower with the one unconditional lower-case mapping that
// produces more than one rune: U+0130 becomes "i" followed by U+0307.
func toLower(b []byte) []byte {
	if bytes.Contains(b, capitalIWithDot) {
		b = bytes.ReplaceAll(b, capitalIWithDot, lowerIWithDot)
	}
	return bytes.ToLower(b)
}

// Match is a convenience function equivalent to building a Matcher for spec
// and calling its Match method.  It returns false if spec is invalid.
func Match(v value.Value, spec Spec) bool {
	m, err := New(spec)
	if err != nil {
		return false
	}
	return m.Match(v)
}
