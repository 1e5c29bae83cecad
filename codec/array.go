package codec

import (
	"encoding/binary"
	"fmt"
	"reflect"

	"github.com/jackc/pgio"
)

// Array wire layout, from src/include/utils/array.h: int32 ndims, int32
// has-nulls flag word, uint32 element OID, then per dimension (int32 length,
// int32 lower bound), then the elements in row-major order, each as int32
// length (-1 for NULL) followed by the element payload.

type arrayHeader struct {
	containsNull bool
	elementOID   OID
	dimensions   []arrayDimension
}

type arrayDimension struct {
	length     int32
	lowerBound int32
}

func (h *arrayHeader) decode(src []byte) (int, error) {
	if len(src) < 12 {
		return 0, fmt.Errorf("array header incomplete")
	}

	ndims := int(int32(binary.BigEndian.Uint32(src)))
	if ndims < 0 || ndims > 16 {
		return 0, fmt.Errorf("invalid array dimension count %d", ndims)
	}

	h.containsNull = int32(binary.BigEndian.Uint32(src[4:])) == 1
	h.elementOID = OID(binary.BigEndian.Uint32(src[8:]))
	rp := 12

	if len(src[rp:]) < ndims*8 {
		return 0, fmt.Errorf("array header incomplete")
	}

	h.dimensions = make([]arrayDimension, ndims)
	for i := range h.dimensions {
		h.dimensions[i].length = int32(binary.BigEndian.Uint32(src[rp:]))
		rp += 4
		h.dimensions[i].lowerBound = int32(binary.BigEndian.Uint32(src[rp:]))
		rp += 4

		if h.dimensions[i].length < 0 {
			return 0, fmt.Errorf("invalid array dimension length %d", h.dimensions[i].length)
		}
	}

	return rp, nil
}

func (h *arrayHeader) encode(dst []byte) []byte {
	dst = pgio.AppendInt32(dst, int32(len(h.dimensions)))

	var containsNull int32
	if h.containsNull {
		containsNull = 1
	}
	dst = pgio.AppendInt32(dst, containsNull)
	dst = pgio.AppendUint32(dst, uint32(h.elementOID))

	for _, d := range h.dimensions {
		dst = pgio.AppendInt32(dst, d.length)
		dst = pgio.AppendInt32(dst, d.lowerBound)
	}

	return dst
}

// decodeArray produces a []interface{} nested to the declared
// dimensionality: one level for a one-dimensional array, N levels for an
// N-dimensional one. Element decoding dispatches through the active Map
// using the element OID carried in the array header, so arrays of arrays
// and arrays of composites decode recursively.
func decodeArray(m *Map, src []byte) (interface{}, error) {
	var h arrayHeader
	rp, err := h.decode(src)
	if err != nil {
		return nil, err
	}

	if len(h.dimensions) == 0 {
		return []interface{}{}, nil
	}

	// Each element occupies at least its 4 byte length word, which bounds
	// the plausible element count by the remaining input.
	avail := int64(len(src) - rp)
	elementCount := int64(1)
	for _, d := range h.dimensions {
		elementCount *= int64(d.length)
		if elementCount*4 > avail {
			return nil, fmt.Errorf("array body too short for %d elements", elementCount)
		}
	}

	flat := make([]interface{}, 0, elementCount)
	for i := 0; int64(i) < elementCount; i++ {
		if len(src[rp:]) < 4 {
			return nil, fmt.Errorf("array element %d incomplete", i)
		}
		elemLen := int(int32(binary.BigEndian.Uint32(src[rp:])))
		rp += 4

		var elemSrc []byte
		if elemLen >= 0 {
			if len(src[rp:]) < elemLen {
				return nil, fmt.Errorf("array element %d incomplete", i)
			}
			elemSrc = src[rp : rp+elemLen]
			rp += elemLen
		}

		v, err := m.Decode(h.elementOID, BinaryFormatCode, elemSrc)
		if err != nil {
			return nil, err
		}
		flat = append(flat, v)
	}

	if len(h.dimensions) <= 1 {
		return flat, nil
	}
	return nestArray(flat, h.dimensions), nil
}

// nestArray folds a row-major flat element list into the declared
// dimensionality.
func nestArray(flat []interface{}, dims []arrayDimension) []interface{} {
	if len(dims) == 1 {
		return flat
	}

	out := make([]interface{}, dims[0].length)
	if dims[0].length == 0 {
		return out
	}

	stride := len(flat) / int(dims[0].length)
	for i := range out {
		out[i] = nestArray(flat[i*stride:(i+1)*stride], dims[1:])
	}
	return out
}

// encodeArray returns the encoder for a one-dimensional array of the given
// element type. Elements encode recursively through the active Map, so a
// Map-level override of the element type applies inside the array too.
func encodeArray(elementOID OID) EncodeFunc {
	return func(m *Map, dst []byte, v interface{}) ([]byte, error) {
		elements, ok := interfaceSlice(v)
		if !ok {
			return nil, fmt.Errorf("cannot convert %T to array", v)
		}

		h := arrayHeader{elementOID: elementOID}
		for _, e := range elements {
			if e == nil {
				h.containsNull = true
				break
			}
		}
		if len(elements) > 0 {
			h.dimensions = []arrayDimension{{length: int32(len(elements)), lowerBound: 1}}
		}
		dst = h.encode(dst)

		var err error
		for _, e := range elements {
			dst, err = m.EncodeValue(elementOID, dst, e)
			if err != nil {
				return nil, err
			}
		}

		return dst, nil
	}
}

// interfaceSlice generalizes over []interface{} and typed slices such as
// []int32 or []string. []byte is not a slice of elements here; it is a
// bytea scalar.
func interfaceSlice(v interface{}) ([]interface{}, bool) {
	if s, ok := v.([]interface{}); ok {
		return s, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}

	out := make([]interface{}, rv.Len())
	for i := range out {
		e := rv.Index(i)
		if e.Kind() == reflect.Ptr && e.IsNil() {
			out[i] = nil
			continue
		}
		out[i] = e.Interface()
	}
	return out, true
}
