package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/jackc/pgio"
)

func decodeInt2(m *Map, src []byte) (interface{}, error) {
	if len(src) != 2 {
		return nil, fmt.Errorf("invalid length for int2: %v", len(src))
	}

	return int16(binary.BigEndian.Uint16(src)), nil
}

func decodeInt4(m *Map, src []byte) (interface{}, error) {
	if len(src) != 4 {
		return nil, fmt.Errorf("invalid length for int4: %v", len(src))
	}

	return int32(binary.BigEndian.Uint32(src)), nil
}

func decodeInt8(m *Map, src []byte) (interface{}, error) {
	if len(src) != 8 {
		return nil, fmt.Errorf("invalid length for int8: %v", len(src))
	}

	return int64(binary.BigEndian.Uint64(src)), nil
}

func decodeIntText(m *Map, src []byte) (interface{}, error) {
	n, err := strconv.ParseInt(string(src), 10, 64)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func decodeOID(m *Map, src []byte) (interface{}, error) {
	if len(src) != 4 {
		return nil, fmt.Errorf("invalid length for oid: %v", len(src))
	}

	return OID(binary.BigEndian.Uint32(src)), nil
}

// int64Value widens any signed integer argument. Unsigned widths that cannot
// overflow int64 are accepted as well.
func int64Value(v interface{}) (int64, bool) {
	switch v := v.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	default:
		return 0, false
	}
}

func encodeInt2(m *Map, dst []byte, v interface{}) ([]byte, error) {
	n, ok := int64Value(v)
	if !ok {
		return nil, fmt.Errorf("cannot convert %T to int2", v)
	}
	if n < math.MinInt16 || n > math.MaxInt16 {
		return nil, fmt.Errorf("%d is out of range for int2", n)
	}

	return pgio.AppendInt16(dst, int16(n)), nil
}

func encodeInt4(m *Map, dst []byte, v interface{}) ([]byte, error) {
	n, ok := int64Value(v)
	if !ok {
		return nil, fmt.Errorf("cannot convert %T to int4", v)
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return nil, fmt.Errorf("%d is out of range for int4", n)
	}

	return pgio.AppendInt32(dst, int32(n)), nil
}

func encodeInt8(m *Map, dst []byte, v interface{}) ([]byte, error) {
	n, ok := int64Value(v)
	if !ok {
		return nil, fmt.Errorf("cannot convert %T to int8", v)
	}

	return pgio.AppendInt64(dst, n), nil
}

func encodeOID(m *Map, dst []byte, v interface{}) ([]byte, error) {
	switch v := v.(type) {
	case OID:
		return pgio.AppendUint32(dst, uint32(v)), nil
	case uint32:
		return pgio.AppendUint32(dst, v), nil
	default:
		n, ok := int64Value(v)
		if !ok || n < 0 || n > math.MaxUint32 {
			return nil, fmt.Errorf("cannot convert %T to oid", v)
		}
		return pgio.AppendUint32(dst, uint32(n)), nil
	}
}
