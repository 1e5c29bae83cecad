package codec

import (
	"fmt"

	"github.com/gofrs/uuid"
)

func decodeUUID(m *Map, src []byte) (interface{}, error) {
	if len(src) != 16 {
		return nil, fmt.Errorf("invalid length for uuid: %v", len(src))
	}

	u, err := uuid.FromBytes(src)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func decodeUUIDText(m *Map, src []byte) (interface{}, error) {
	u, err := uuid.FromString(string(src))
	if err != nil {
		return nil, err
	}
	return u, nil
}

func encodeUUID(m *Map, dst []byte, v interface{}) ([]byte, error) {
	switch v := v.(type) {
	case uuid.UUID:
		return append(dst, v.Bytes()...), nil
	case [16]byte:
		return append(dst, v[:]...), nil
	case []byte:
		if len(v) != 16 {
			return nil, fmt.Errorf("[]byte must be 16 bytes to encode as uuid: %d", len(v))
		}
		return append(dst, v...), nil
	case string:
		u, err := uuid.FromString(v)
		if err != nil {
			return nil, err
		}
		return append(dst, u.Bytes()...), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to uuid", v)
	}
}
