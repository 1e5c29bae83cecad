// Package codec implements the PostgreSQL binary wire format for SQL data
// types: a registry of per-OID encoder/decoder pairs (the read table) that
// supports scalar, composite, and arbitrarily nested array types.
//
// Decoding is a pure function of (OID, format, bytes) and the active Map.
// Nested container types dispatch element decoding back through the same
// Map, so an override registered on a derived Map applies to occurrences of
// that type at any nesting depth.
package codec

import (
	"fmt"

	"github.com/jackc/pgio"
)

// OID is a PostgreSQL object identifier used here to identify data types.
type OID uint32

// OIDs of the supported built-in types.
const (
	BoolOID             OID = 16
	ByteaOID            OID = 17
	QCharOID            OID = 18
	NameOID             OID = 19
	Int8OID             OID = 20
	Int2OID             OID = 21
	Int4OID             OID = 23
	TextOID             OID = 25
	OIDOID              OID = 26
	JSONOID             OID = 114
	PointOID            OID = 600
	Float4OID           OID = 700
	Float8OID           OID = 701
	UnknownOID          OID = 705
	BoolArrayOID        OID = 1000
	ByteaArrayOID       OID = 1001
	Int2ArrayOID        OID = 1005
	Int4ArrayOID        OID = 1007
	TextArrayOID        OID = 1009
	BPCharArrayOID      OID = 1014
	VarcharArrayOID     OID = 1015
	Int8ArrayOID        OID = 1016
	PointArrayOID       OID = 1017
	Float4ArrayOID      OID = 1021
	Float8ArrayOID      OID = 1022
	BPCharOID           OID = 1042
	VarcharOID          OID = 1043
	DateOID             OID = 1082
	TimeOID             OID = 1083
	TimestampOID        OID = 1114
	TimestampArrayOID   OID = 1115
	DateArrayOID        OID = 1182
	TimestamptzOID      OID = 1184
	TimestamptzArrayOID OID = 1185
	IntervalOID         OID = 1186
	IntervalArrayOID    OID = 1187
	NumericArrayOID     OID = 1231
	BitOID              OID = 1560
	VarbitArrayOID      OID = 1563
	VarbitOID           OID = 1562
	BitArrayOID         OID = 1561
	NumericOID          OID = 1700
	RecordOID           OID = 2249
	RecordArrayOID      OID = 2287
	UUIDOID             OID = 2950
	UUIDArrayOID        OID = 2951
	JSONBOID            OID = 3802
	JSONBArrayOID       OID = 3807
)

// PostgreSQL format codes.
const (
	TextFormatCode   int16 = 0
	BinaryFormatCode int16 = 1
)

// DecodeFunc decodes the wire representation of one value. src is never nil;
// NULL is handled before dispatch.
type DecodeFunc func(m *Map, src []byte) (interface{}, error)

// EncodeFunc appends the binary wire representation of v to dst, without a
// length prefix.
type EncodeFunc func(m *Map, dst []byte, v interface{}) ([]byte, error)

// Codec is one read-table entry: the binary decoder and encoder for a type,
// plus an optional text-format decoder.
type Codec struct {
	Name         string
	OID          OID
	DecodeBinary DecodeFunc
	DecodeText   DecodeFunc
	EncodeBinary EncodeFunc
}

// UnknownOIDError is returned when a binary value arrives for a type with no
// registered codec. It is a local error, not a server error.
type UnknownOIDError struct {
	OID OID
}

func (e *UnknownOIDError) Error() string {
	return fmt.Sprintf("no codec registered for oid %d", e.OID)
}

// DecodeError wraps a failure to decode a value of a known type.
type DecodeError struct {
	Name string
	OID  OID
	err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode %s (oid %d): %v", e.Name, e.OID, e.err)
}

func (e *DecodeError) Unwrap() error { return e.err }

// Map is the read table: a mapping from type OID to codec. A Map derived
// from a parent resolves lookups locally first, then falls back to the
// parent chain. Maps are never mutated through their children, so deriving
// and discarding a Map is an exact save and restore of decoding behavior.
//
// A Map must not be mutated concurrently with use, but any number of
// goroutines may decode through an unchanging Map.
type Map struct {
	parent *Map
	codecs map[OID]*Codec
}

// NewMap returns a read table populated with the built-in codecs.
func NewMap() *Map {
	m := &Map{codecs: make(map[OID]*Codec, 64)}

	m.Register(&Codec{Name: "bool", OID: BoolOID, DecodeBinary: decodeBool, DecodeText: decodeBoolText, EncodeBinary: encodeBool})
	m.Register(&Codec{Name: "bytea", OID: ByteaOID, DecodeBinary: decodeBytea, EncodeBinary: encodeBytea})
	m.Register(&Codec{Name: "char", OID: QCharOID, DecodeBinary: decodeQChar, EncodeBinary: encodeQChar})
	m.Register(&Codec{Name: "int2", OID: Int2OID, DecodeBinary: decodeInt2, DecodeText: decodeIntText, EncodeBinary: encodeInt2})
	m.Register(&Codec{Name: "int4", OID: Int4OID, DecodeBinary: decodeInt4, DecodeText: decodeIntText, EncodeBinary: encodeInt4})
	m.Register(&Codec{Name: "int8", OID: Int8OID, DecodeBinary: decodeInt8, DecodeText: decodeIntText, EncodeBinary: encodeInt8})
	m.Register(&Codec{Name: "oid", OID: OIDOID, DecodeBinary: decodeOID, EncodeBinary: encodeOID})
	m.Register(&Codec{Name: "float4", OID: Float4OID, DecodeBinary: decodeFloat4, EncodeBinary: encodeFloat4})
	m.Register(&Codec{Name: "float8", OID: Float8OID, DecodeBinary: decodeFloat8, EncodeBinary: encodeFloat8})
	m.Register(&Codec{Name: "text", OID: TextOID, DecodeBinary: decodeText, DecodeText: decodeText, EncodeBinary: encodeText})
	m.Register(&Codec{Name: "varchar", OID: VarcharOID, DecodeBinary: decodeText, DecodeText: decodeText, EncodeBinary: encodeText})
	m.Register(&Codec{Name: "bpchar", OID: BPCharOID, DecodeBinary: decodeText, DecodeText: decodeText, EncodeBinary: encodeText})
	m.Register(&Codec{Name: "name", OID: NameOID, DecodeBinary: decodeText, DecodeText: decodeText, EncodeBinary: encodeText})
	m.Register(&Codec{Name: "unknown", OID: UnknownOID, DecodeBinary: decodeText, DecodeText: decodeText, EncodeBinary: encodeText})
	m.Register(&Codec{Name: "json", OID: JSONOID, DecodeBinary: decodeJSON, DecodeText: decodeJSON, EncodeBinary: encodeJSON})
	m.Register(&Codec{Name: "jsonb", OID: JSONBOID, DecodeBinary: decodeJSONB, DecodeText: decodeJSON, EncodeBinary: encodeJSONB})
	m.Register(&Codec{Name: "numeric", OID: NumericOID, DecodeBinary: decodeNumeric, EncodeBinary: encodeNumeric})
	m.Register(&Codec{Name: "uuid", OID: UUIDOID, DecodeBinary: decodeUUID, DecodeText: decodeUUIDText, EncodeBinary: encodeUUID})
	m.Register(&Codec{Name: "bit", OID: BitOID, DecodeBinary: decodeBits, EncodeBinary: encodeBits})
	m.Register(&Codec{Name: "varbit", OID: VarbitOID, DecodeBinary: decodeBits, EncodeBinary: encodeBits})
	m.Register(&Codec{Name: "point", OID: PointOID, DecodeBinary: decodePoint, EncodeBinary: encodePoint})
	m.Register(&Codec{Name: "date", OID: DateOID, DecodeBinary: decodeDate, EncodeBinary: encodeDate})
	m.Register(&Codec{Name: "time", OID: TimeOID, DecodeBinary: decodeTime, EncodeBinary: encodeTime})
	m.Register(&Codec{Name: "timestamp", OID: TimestampOID, DecodeBinary: decodeTimestamp, EncodeBinary: encodeTimestamp})
	m.Register(&Codec{Name: "timestamptz", OID: TimestamptzOID, DecodeBinary: decodeTimestamp, EncodeBinary: encodeTimestamp})
	m.Register(&Codec{Name: "interval", OID: IntervalOID, DecodeBinary: decodeInterval, EncodeBinary: encodeInterval})
	m.Register(&Codec{Name: "record", OID: RecordOID, DecodeBinary: decodeComposite})

	arrays := []struct {
		name    string
		oid     OID
		element OID
	}{
		{"_bool", BoolArrayOID, BoolOID},
		{"_bytea", ByteaArrayOID, ByteaOID},
		{"_int2", Int2ArrayOID, Int2OID},
		{"_int4", Int4ArrayOID, Int4OID},
		{"_int8", Int8ArrayOID, Int8OID},
		{"_text", TextArrayOID, TextOID},
		{"_bpchar", BPCharArrayOID, BPCharOID},
		{"_varchar", VarcharArrayOID, VarcharOID},
		{"_point", PointArrayOID, PointOID},
		{"_float4", Float4ArrayOID, Float4OID},
		{"_float8", Float8ArrayOID, Float8OID},
		{"_date", DateArrayOID, DateOID},
		{"_timestamp", TimestampArrayOID, TimestampOID},
		{"_timestamptz", TimestamptzArrayOID, TimestamptzOID},
		{"_interval", IntervalArrayOID, IntervalOID},
		{"_numeric", NumericArrayOID, NumericOID},
		{"_bit", BitArrayOID, BitOID},
		{"_varbit", VarbitArrayOID, VarbitOID},
		{"_record", RecordArrayOID, RecordOID},
		{"_uuid", UUIDArrayOID, UUIDOID},
		{"_jsonb", JSONBArrayOID, JSONBOID},
	}
	for _, a := range arrays {
		m.Register(&Codec{
			Name:         a.name,
			OID:          a.oid,
			DecodeBinary: decodeArray,
			EncodeBinary: encodeArray(a.element),
		})
	}

	return m
}

// Derive returns a new empty Map whose lookups fall back to m. Registering
// on the derived Map shadows m's entry for that OID without mutating m.
func (m *Map) Derive() *Map {
	return &Map{parent: m, codecs: make(map[OID]*Codec)}
}

// Register installs c under c.OID, replacing any local entry for that OID.
func (m *Map) Register(c *Codec) {
	m.codecs[c.OID] = c
}

// RegisterDecoder installs a bare binary decoder for oid, keeping no encoder.
// It is the hook for caller-extensible result decoding.
func (m *Map) RegisterDecoder(oid OID, name string, fn DecodeFunc) {
	m.Register(&Codec{Name: name, OID: oid, DecodeBinary: fn})
}

// Lookup resolves oid through m and its parent chain.
func (m *Map) Lookup(oid OID) (*Codec, bool) {
	for table := m; table != nil; table = table.parent {
		if c, ok := table.codecs[oid]; ok {
			return c, true
		}
	}
	return nil, false
}

// Decode converts one wire value into a Go value. A nil src is SQL NULL and
// decodes to nil for every type. Text-format values of unregistered types
// pass through as strings; binary-format values of unregistered types fail
// with *UnknownOIDError.
func (m *Map) Decode(oid OID, format int16, src []byte) (interface{}, error) {
	if src == nil {
		return nil, nil
	}

	c, ok := m.Lookup(oid)
	if !ok {
		if format == TextFormatCode {
			return string(src), nil
		}
		return nil, &UnknownOIDError{OID: oid}
	}

	var fn DecodeFunc
	switch format {
	case BinaryFormatCode:
		fn = c.DecodeBinary
	case TextFormatCode:
		fn = c.DecodeText
	}
	if fn == nil {
		return nil, fmt.Errorf("cannot decode %s (oid %d) in format %d", c.Name, oid, format)
	}

	v, err := fn(m, src)
	if err != nil {
		return nil, &DecodeError{Name: c.Name, OID: oid, err: err}
	}
	return v, nil
}

// EncodeValue appends the length-prefixed binary representation of v to dst,
// as used for Bind parameters and COPY fields. nil appends the NULL length
// of -1 with no payload, for any type.
func (m *Map) EncodeValue(oid OID, dst []byte, v interface{}) ([]byte, error) {
	if v == nil {
		return pgio.AppendInt32(dst, -1), nil
	}

	c, ok := m.Lookup(oid)
	if !ok {
		return nil, &UnknownOIDError{OID: oid}
	}
	if c.EncodeBinary == nil {
		return nil, fmt.Errorf("no binary encoder for %s (oid %d)", c.Name, oid)
	}

	sp := len(dst)
	dst = pgio.AppendInt32(dst, -1)

	dst, err := c.EncodeBinary(m, dst, v)
	if err != nil {
		return nil, fmt.Errorf("cannot encode %s (oid %d): %w", c.Name, oid, err)
	}

	pgio.SetInt32(dst[sp:], int32(len(dst[sp:])-4))

	return dst, nil
}
