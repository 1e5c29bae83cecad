package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/jackc/pgio"
)

// Point is the geometric point type: an (x, y) pair of float8 coordinates.
type Point struct {
	X float64
	Y float64
}

func (p Point) String() string {
	return fmt.Sprintf("(%v,%v)", p.X, p.Y)
}

func decodePoint(m *Map, src []byte) (interface{}, error) {
	if len(src) != 16 {
		return nil, fmt.Errorf("invalid length for point: %v", len(src))
	}

	return Point{
		X: math.Float64frombits(binary.BigEndian.Uint64(src)),
		Y: math.Float64frombits(binary.BigEndian.Uint64(src[8:])),
	}, nil
}

func encodePoint(m *Map, dst []byte, v interface{}) ([]byte, error) {
	p, ok := v.(Point)
	if !ok {
		return nil, fmt.Errorf("cannot convert %T to point", v)
	}

	dst = pgio.AppendUint64(dst, math.Float64bits(p.X))
	dst = pgio.AppendUint64(dst, math.Float64bits(p.Y))
	return dst, nil
}
