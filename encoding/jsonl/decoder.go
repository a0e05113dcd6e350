// Package jsonl parses the individual lines of a JSONL stream.
//
// Each line holds exactly one JSON value.  Parse turns a line into a
// value.Value whose scalars keep their literal text, so the caller can look at
// the exact form of a field without re-encoding it.
package jsonl

import (
	"bytes"
	"fmt"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/arnodel/derrik/internal/scanner"
	"github.com/arnodel/derrik/value"
)

// MaxDepth is the maximum nesting of arrays and objects accepted by Parse.
const MaxDepth = 128

// A SyntaxError describes why a line is not a single valid JSON value.
type SyntaxError struct {
	Offset int // byte offset in the line where the error was detected
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at byte %d: %s", e.Offset, e.Msg)
}

// Parse reads a single JSON value from line.  Whitespace around the value is
// allowed, anything else after it is an error.  The returned value may alias
// line, so line must not be modified while the value is in use.
func Parse(line []byte) (value.Value, error) {
	if !utf8.Valid(line) {
		return nil, &SyntaxError{Msg: "invalid UTF-8"}
	}
	d := decoder{scanr: scanner.New(line)}
	v, err := d.parseValue()
	if err != nil {
		return nil, err
	}
	if b := d.scanr.SkipSpaceAndPeek(); b != scanner.EOF {
		return nil, d.unexpectedByte("trailing data after value")
	}
	return v, nil
}

type decoder struct {
	scanr *scanner.Scanner
	depth int
}

// parseValue reads a single JSON value.  It returns a non-nil error if the
// input is invalid JSON.
func (d *decoder) parseValue() (value.Value, error) {
	b := d.scanr.SkipSpaceAndPeek()
	switch b {
	case scanner.EOF:
		return nil, d.syntaxError("unexpected end of input")
	case '"':
		return d.parseString()
	case '[':
		return d.parseArray()
	case '{':
		return d.parseObject()
	case 't':
		return value.TrueScalar, d.checkBytes(trueBytes)
	case 'f':
		return value.FalseScalar, d.checkBytes(falseBytes)
	case 'n':
		return value.NullScalar, d.checkBytes(nullBytes)
	default:
		if b == '-' || scanner.IsDigit(b) {
			return d.parseNumber()
		}
		return nil, d.unexpectedByte("unexpected")
	}
}

func (d *decoder) enter() error {
	d.depth++
	if d.depth > MaxDepth {
		return d.syntaxError(fmt.Sprintf("nesting deeper than %d", MaxDepth))
	}
	return nil
}

func (d *decoder) parseArray() (value.Value, error) {
	if err := d.expectByte('['); err != nil {
		return nil, err
	}
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer func() { d.depth-- }()
	list := value.List{}
	if d.scanr.SkipSpaceAndPeek() == ']' {
		d.scanr.Read()
		return list, nil
	}
	for {
		v, err := d.parseValue()
		if err != nil {
			return nil, err
		}
		list = append(list, v)
		switch d.scanr.SkipSpaceAndPeek() {
		case ']':
			d.scanr.Read()
			return list, nil
		case ',':
			d.scanr.Read()
		default:
			return nil, d.unexpectedByte("expected ']' or ',', got")
		}
	}
}

func (d *decoder) parseObject() (value.Value, error) {
	if err := d.expectByte('{'); err != nil {
		return nil, err
	}
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer func() { d.depth-- }()
	obj := value.NewMap(8)
	if d.scanr.SkipSpaceAndPeek() == '}' {
		d.scanr.Read()
		return obj, nil
	}
	for {
		if d.scanr.SkipSpaceAndPeek() != '"' {
			return nil, d.unexpectedByte("expected object key, got")
		}
		key, err := d.parseString()
		if err != nil {
			return nil, err
		}
		if d.scanr.SkipSpaceAndPeek() != ':' {
			return nil, d.unexpectedByte("expected ':', got")
		}
		d.scanr.Read()
		v, err := d.parseValue()
		if err != nil {
			return nil, err
		}
		obj.Set(key.ToString(), v)
		switch d.scanr.SkipSpaceAndPeek() {
		case '}':
			d.scanr.Read()
			return obj, nil
		case ',':
			d.scanr.Read()
		default:
			return nil, d.unexpectedByte("expected '}' or ',', got")
		}
	}
}

func (d *decoder) expectByte(xb byte) error {
	b := d.scanr.Read()
	if b != xb {
		d.scanr.Back()
		return d.unexpectedByte(fmt.Sprintf("expected %q, got", xb))
	}
	return nil
}

func (d *decoder) syntaxError(msg string) *SyntaxError {
	return &SyntaxError{Offset: d.scanr.Offset(), Msg: msg}
}

func (d *decoder) unexpectedByte(expected string) *SyntaxError {
	b := d.scanr.Peek()
	if b == scanner.EOF {
		return d.syntaxError(expected + " <EOF>")
	}
	return d.syntaxError(fmt.Sprintf("%s %q", expected, b))
}

func (d *decoder) parseString() (*value.Scalar, error) {
	d.scanr.StartToken()
	defer d.scanr.AbortToken()
	if err := d.expectByte('"'); err != nil {
		return nil, err
	}
	isUnescaped := true
	for {
		b := d.scanr.Read()
		switch {
		case b == scanner.EOF:
			d.scanr.Back()
			return nil, d.syntaxError("unterminated string")
		case b == '\\':
			isUnescaped = false
			if err := d.parseEscape(); err != nil {
				return nil, err
			}
		case b == '"':
			return value.NewString(d.scanr.EndToken(), isUnescaped), nil
		case scanner.IsCtrl(b):
			d.scanr.Back()
			return nil, d.unexpectedByte("invalid control character in string")
		}
	}
}

// parseEscape validates the escape sequence following a backslash.  Escaped
// UTF-16 surrogates must come in high/low pairs.
func (d *decoder) parseEscape() error {
	switch x := d.scanr.Read(); x {
	case '"', '\\', '/', 'b', 'f', 'n', 'r', 't':
		return nil
	case 'u':
		r, err := d.readHex4()
		if err != nil {
			return err
		}
		if !utf16.IsSurrogate(r) {
			return nil
		}
		if r >= 0xDC00 {
			return d.syntaxError("lone trailing surrogate in escape")
		}
		if d.scanr.Read() != '\\' || d.scanr.Read() != 'u' {
			return d.syntaxError("lone leading surrogate in escape")
		}
		r2, err := d.readHex4()
		if err != nil {
			return err
		}
		if utf16.DecodeRune(r, r2) == utf8.RuneError {
			return d.syntaxError("invalid surrogate pair in escape")
		}
		return nil
	default:
		if x != scanner.EOF {
			d.scanr.Back()
		}
		return d.unexpectedByte("invalid escape")
	}
}

func (d *decoder) readHex4() (rune, error) {
	var r rune
	for i := 0; i < 4; i++ {
		b := d.scanr.Read()
		if !scanner.IsHex(b) {
			if b != scanner.EOF {
				d.scanr.Back()
			}
			return 0, d.unexpectedByte("expected hex, got")
		}
		r = r<<4 | rune(hexValue(b))
	}
	return r, nil
}

func hexValue(b byte) byte {
	switch {
	case b >= 'a':
		return b - 'a' + 10
	case b >= 'A':
		return b - 'A' + 10
	default:
		return b - '0'
	}
}

func (d *decoder) parseNumber() (*value.Scalar, error) {
	d.scanr.StartToken()
	defer d.scanr.AbortToken()

	// Sign part
	b := d.scanr.Read()
	if b == '-' {
		b = d.scanr.Read()
	}

	// Integer part
	switch {
	case b == '0':
		b = d.scanr.Read()
	case b >= '1' && b <= '9':
		b, _ = d.readDigits()
	default:
		if b != scanner.EOF {
			d.scanr.Back()
		}
		return nil, d.unexpectedByte("expected digit, got")
	}

	// Fraction part
	if b == '.' {
		var n int
		b, n = d.readDigits()
		if n == 0 {
			d.scanr.Back()
			return nil, d.unexpectedByte("expected digit, got")
		}
	}

	// Exponent part
	if b == 'e' || b == 'E' {
		if b := d.scanr.Peek(); b == '-' || b == '+' {
			d.scanr.Read()
		}
		var n int
		_, n = d.readDigits()
		if n == 0 {
			d.scanr.Back()
			return nil, d.unexpectedByte("expected digit, got")
		}
	}
	d.scanr.Back()
	lit := d.scanr.EndToken()
	if !inRange(lit) {
		return nil, d.syntaxError("number out of range")
	}
	return value.NewScalar(value.Number, lit), nil
}

// inRange reports whether lit fits in a float64.  Only a literal with an
// exponent or a great many digits can overflow.
func inRange(lit []byte) bool {
	if len(lit) <= 64 && bytes.IndexAny(lit, "eE") < 0 {
		return true
	}
	_, err := strconv.ParseFloat(string(lit), 64)
	return err == nil
}

// readDigits consumes a run of digits and returns the first non-digit byte
// read (possibly EOF) and the number of digits.
func (d *decoder) readDigits() (byte, int) {
	var n int
	for {
		b := d.scanr.Read()
		if !scanner.IsDigit(b) {
			return b, n
		}
		n++
	}
}

func (d *decoder) checkBytes(expected []byte) error {
	for _, xb := range expected {
		if err := d.expectByte(xb); err != nil {
			return err
		}
	}
	return nil
}

var (
	trueBytes  = []byte("true")
	falseBytes = []byte("false")
	nullBytes  = []byte("null")
)
