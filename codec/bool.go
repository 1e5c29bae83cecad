package codec

import (
	"fmt"
)

func decodeBool(m *Map, src []byte) (interface{}, error) {
	if len(src) != 1 {
		return nil, fmt.Errorf("invalid length for bool: %v", len(src))
	}

	return src[0] == 1, nil
}

func decodeBoolText(m *Map, src []byte) (interface{}, error) {
	if len(src) != 1 {
		return nil, fmt.Errorf("invalid length for bool: %v", len(src))
	}

	return src[0] == 't', nil
}

func encodeBool(m *Map, dst []byte, v interface{}) ([]byte, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("cannot convert %T to bool", v)
	}

	if b {
		return append(dst, 1), nil
	}
	return append(dst, 0), nil
}
