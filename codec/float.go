package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/jackc/pgio"
)

func decodeFloat4(m *Map, src []byte) (interface{}, error) {
	if len(src) != 4 {
		return nil, fmt.Errorf("invalid length for float4: %v", len(src))
	}

	return math.Float32frombits(binary.BigEndian.Uint32(src)), nil
}

func decodeFloat8(m *Map, src []byte) (interface{}, error) {
	if len(src) != 8 {
		return nil, fmt.Errorf("invalid length for float8: %v", len(src))
	}

	return math.Float64frombits(binary.BigEndian.Uint64(src)), nil
}

func encodeFloat4(m *Map, dst []byte, v interface{}) ([]byte, error) {
	f, ok := v.(float32)
	if !ok {
		return nil, fmt.Errorf("cannot convert %T to float4", v)
	}

	return pgio.AppendUint32(dst, math.Float32bits(f)), nil
}

func encodeFloat8(m *Map, dst []byte, v interface{}) ([]byte, error) {
	var f float64
	switch v := v.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	default:
		n, ok := int64Value(v)
		if !ok {
			return nil, fmt.Errorf("cannot convert %T to float8", v)
		}
		f = float64(n)
	}

	return pgio.AppendUint64(dst, math.Float64bits(f)), nil
}
