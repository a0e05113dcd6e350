package value

import (
	"bytes"
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrNumberRange is returned for a number literal too large for a float64.
var ErrNumberRange = errors.New("number out of range")

// AppendNumber appends the canonical text of the JSON number literal lit to
// dst.  A literal without fraction or exponent that fits in an int64 or a
// uint64 is written as that integer.  Any other number is read as a float64
// and written as the shortest decimal that reads back as the same float64,
// with a ".0" suffix when it is integral:
//
//	30           30
//	1.50         1.5
//	1e2          100.0
//	-0           -0.0
//	1e16         1e16
//	0.0000012    1.2e-6
//
// Scientific notation is used below 1e-5 and from 1e16 on.
func AppendNumber(dst, lit []byte) ([]byte, error) {
	if bytes.IndexAny(lit, ".eE") < 0 {
		if len(lit) > 0 && lit[0] == '-' {
			// -0 is not an integer here, it is the float -0.0.
			if i, err := strconv.ParseInt(string(lit), 10, 64); err == nil && i != 0 {
				return strconv.AppendInt(dst, i, 10), nil
			}
		} else if u, err := strconv.ParseUint(string(lit), 10, 64); err == nil {
			return strconv.AppendUint(dst, u, 10), nil
		}
	}
	f, err := strconv.ParseFloat(string(lit), 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return dst, ErrNumberRange
		}
		return dst, err
	}
	return appendFloat(dst, f), nil
}

func appendFloat(dst []byte, f float64) []byte {
	if abs := math.Abs(f); abs == 0 || abs >= 1e-5 && abs < 1e16 {
		start := len(dst)
		dst = strconv.AppendFloat(dst, f, 'f', -1, 64)
		if bytes.IndexByte(dst[start:], '.') < 0 {
			dst = append(dst, '.', '0')
		}
		return dst
	}
	// strconv writes the exponent signed and with two digits at least.
	mant, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
	e, _ := strconv.Atoi(exp)
	dst = append(dst, mant...)
	dst = append(dst, 'e')
	return strconv.AppendInt(dst, int64(e), 10)
}
