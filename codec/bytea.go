package codec

import (
	"fmt"
)

func decodeBytea(m *Map, src []byte) (interface{}, error) {
	buf := make([]byte, len(src))
	copy(buf, src)
	return buf, nil
}

func encodeBytea(m *Map, dst []byte, v interface{}) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("cannot convert %T to bytea", v)
	}

	return append(dst, b...), nil
}
