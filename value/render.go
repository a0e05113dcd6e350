package value

import "unicode/utf8"

// Render returns the compact JSON text of a scalar value:
//
//	null, true, false   as is
//	numbers             the canonical text of AppendNumber
//	strings             quoted, with the minimal escaping of compact JSON
//
// Numbers and strings are normalised so that two literals denoting the same
// value render identically (1e2 and 100.0 both render as 100.0, "\u0041" and
// "A" both render as "A").  Only '"', '\\' and
// control characters are escaped; other characters are written as UTF-8.
//
// The boolean result is false for arrays and objects, which have no
// rendering here.
func Render(v Value) ([]byte, bool) {
	s, ok := v.(*Scalar)
	if !ok {
		return nil, false
	}
	switch {
	case s.Kind() == Number:
		b, err := AppendNumber(nil, s.Bytes)
		if err != nil {
			return s.Bytes, true
		}
		return b, true
	case s.Kind() != String || s.IsUnescaped():
		return s.Bytes, true
	}
	return AppendQuoted(nil, s.ToString()), true
}

const hexDigits = "0123456789abcdef"

// AppendQuoted appends str to dst as a JSON string literal using the escaping
// rules of Render.
func AppendQuoted(dst []byte, str string) []byte {
	dst = append(dst, '"')
	start := 0
	for i := 0; i < len(str); i++ {
		b := str[i]
		if b >= utf8.RuneSelf || b >= 0x20 && b != '"' && b != '\\' {
			continue
		}
		dst = append(dst, str[start:i]...)
		switch b {
		case '"':
			dst = append(dst, '\\', '"')
		case '\\':
			dst = append(dst, '\\', '\\')
		case '\b':
			dst = append(dst, '\\', 'b')
		case '\f':
			dst = append(dst, '\\', 'f')
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		default:
			dst = append(dst, '\\', 'u', '0', '0', hexDigits[b>>4], hexDigits[b&0xF])
		}
		start = i + 1
	}
	dst = append(dst, str[start:]...)
	return append(dst, '"')
}
