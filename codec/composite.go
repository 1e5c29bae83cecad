package codec

import (
	"encoding/binary"
	"fmt"
)

// Composite (row) wire layout, from record_send in
// src/backend/utils/adt/rowtypes.c: int32 field count, then per field a
// uint32 member type OID and an int32 length (-1 for NULL) followed by the
// member payload.
//
// decodeComposite returns the members as an ordered []interface{}; mapping
// members to named fields is a higher-level concern. Member decoding
// dispatches through the active Map, so composites nest arbitrarily with
// arrays and other composites, and Map-level overrides apply to members.
func decodeComposite(m *Map, src []byte) (interface{}, error) {
	if len(src) < 4 {
		return nil, fmt.Errorf("record incomplete")
	}

	fieldCount := int(int32(binary.BigEndian.Uint32(src)))
	// Each field occupies at least its 8 byte OID and length words.
	if fieldCount < 0 || fieldCount > (len(src)-4)/8 {
		return nil, fmt.Errorf("invalid record field count %d", fieldCount)
	}
	rp := 4

	values := make([]interface{}, 0, fieldCount)
	for i := 0; i < fieldCount; i++ {
		if len(src[rp:]) < 8 {
			return nil, fmt.Errorf("record field %d incomplete", i)
		}

		fieldOID := OID(binary.BigEndian.Uint32(src[rp:]))
		rp += 4
		fieldLen := int(int32(binary.BigEndian.Uint32(src[rp:])))
		rp += 4

		var fieldSrc []byte
		if fieldLen >= 0 {
			if len(src[rp:]) < fieldLen {
				return nil, fmt.Errorf("record field %d incomplete", i)
			}
			fieldSrc = src[rp : rp+fieldLen]
			rp += fieldLen
		}

		v, err := m.Decode(fieldOID, BinaryFormatCode, fieldSrc)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}

	return values, nil
}
