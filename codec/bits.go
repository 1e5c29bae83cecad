package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/jackc/pgio"
)

// Bits is a bit or varbit value: Len bits packed big-endian into Bytes,
// most significant bit first. Any pad bits in the final byte are zero and
// are not part of the value.
type Bits struct {
	Bytes []byte
	Len   int32
}

// Bit reports the value of bit i, counting from the left.
func (b Bits) Bit(i int) bool {
	return b.Bytes[i/8]&(0x80>>uint(i%8)) != 0
}

// Bools expands the value into one bool per bit, exactly Len long.
func (b Bits) Bools() []bool {
	out := make([]bool, b.Len)
	for i := range out {
		out[i] = b.Bit(i)
	}
	return out
}

// String renders the value as a 0/1 sequence, e.g. "0000000000100000" for
// cast(32 as bit(16)).
func (b Bits) String() string {
	buf := make([]byte, b.Len)
	for i := range buf {
		if b.Bit(i) {
			buf[i] = '1'
		} else {
			buf[i] = '0'
		}
	}
	return string(buf)
}

func decodeBits(m *Map, src []byte) (interface{}, error) {
	if len(src) < 4 {
		return nil, fmt.Errorf("invalid length for bit/varbit: %v", len(src))
	}

	bitLen := int32(binary.BigEndian.Uint32(src))
	if bitLen < 0 {
		return nil, fmt.Errorf("invalid bit length %d", bitLen)
	}

	byteLen := int((int64(bitLen) + 7) / 8)
	if len(src[4:]) < byteLen {
		return nil, fmt.Errorf("bit/varbit truncated: %d bits in %d bytes", bitLen, len(src[4:]))
	}

	buf := make([]byte, byteLen)
	copy(buf, src[4:])

	// Zero the pad bits so they cannot leak into the value.
	if pad := uint(byteLen*8) - uint(bitLen); pad != 0 && byteLen > 0 {
		buf[byteLen-1] &= 0xff << pad
	}

	return Bits{Bytes: buf, Len: bitLen}, nil
}

func encodeBits(m *Map, dst []byte, v interface{}) ([]byte, error) {
	b, ok := v.(Bits)
	if !ok {
		return nil, fmt.Errorf("cannot convert %T to bit/varbit", v)
	}

	dst = pgio.AppendInt32(dst, b.Len)
	return append(dst, b.Bytes...), nil
}
