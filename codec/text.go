package codec

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var errInvalidUTF8 = errors.New("invalid UTF-8 byte sequence")

// decodeText converts a length-delimited byte sequence to a string. Malformed
// UTF-8 fails the decode; replacement characters are never substituted.
func decodeText(m *Map, src []byte) (interface{}, error) {
	if !utf8.Valid(src) {
		return nil, errInvalidUTF8
	}

	return string(src), nil
}

// decodeQChar handles the internal single-byte "char" type. The value is one
// raw byte, not a character in the database encoding.
func decodeQChar(m *Map, src []byte) (interface{}, error) {
	if len(src) != 1 {
		return nil, fmt.Errorf(`invalid length for "char": %d`, len(src))
	}

	return src[0], nil
}

func encodeQChar(m *Map, dst []byte, v interface{}) ([]byte, error) {
	switch v := v.(type) {
	case byte:
		return append(dst, v), nil
	case rune:
		if v > 255 {
			return nil, fmt.Errorf(`%q does not fit in "char"`, v)
		}
		return append(dst, byte(v)), nil
	default:
		return nil, fmt.Errorf(`cannot convert %T to "char"`, v)
	}
}

func encodeText(m *Map, dst []byte, v interface{}) ([]byte, error) {
	switch v := v.(type) {
	case string:
		return append(dst, v...), nil
	case []byte:
		return append(dst, v...), nil
	case fmt.Stringer:
		return append(dst, v.String()...), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to text", v)
	}
}
