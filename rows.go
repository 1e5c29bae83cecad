package pgwire

import (
	"strconv"
	"strings"

	"github.com/pgkit/pgwire/codec"
	"github.com/pgkit/pgwire/proto"
)

// CommandTag is the status tag reported in CommandComplete, e.g. "INSERT 0 1".
type CommandTag string

// RowsAffected returns the number of rows affected. If the CommandTag was not
// for a row affecting command (e.g. "CREATE TABLE") then it returns 0.
func (ct CommandTag) RowsAffected() int64 {
	s := string(ct)
	index := strings.LastIndex(s, " ")
	if index == -1 {
		return 0
	}
	n, _ := strconv.ParseInt(s[index+1:], 10, 64)
	return n
}

func (ct CommandTag) String() string {
	return string(ct)
}

// RowReader consumes the result cycle of one statement. Describe is called
// once if the statement returns rows, Row once per data row with the raw wire
// values, and Complete exactly once with the status tag. The value Complete
// returns is what the executor hands back for that statement.
//
// The raw values passed to Row alias the connection's receive buffer and are
// only valid for the duration of the call.
type RowReader interface {
	Describe(fields []proto.FieldDescription) error
	Row(values [][]byte) error
	Complete(tag CommandTag) (interface{}, error)
}

// Result is one statement's outcome as produced by the built-in readers.
type Result struct {
	Fields     []proto.FieldDescription
	Rows       [][]interface{}
	CommandTag CommandTag
}

// valuesReader accumulates rows as ordered value slices, decoding every
// column through the connection's type map.
type valuesReader struct {
	m      *codec.Map
	fields []proto.FieldDescription
	rows   [][]interface{}
}

func (r *valuesReader) Describe(fields []proto.FieldDescription) error {
	r.fields = copyFields(fields)
	return nil
}

func (r *valuesReader) Row(values [][]byte) error {
	row, err := decodeRow(r.m, r.fields, values)
	if err != nil {
		return err
	}
	r.rows = append(r.rows, row)
	return nil
}

func (r *valuesReader) Complete(tag CommandTag) (interface{}, error) {
	result := &Result{Fields: r.fields, Rows: r.rows, CommandTag: tag}
	r.fields = nil
	r.rows = nil
	return result, nil
}

// MapResult is one statement's outcome as produced by the map reader.
type MapResult struct {
	Fields     []proto.FieldDescription
	Rows       []map[string]interface{}
	CommandTag CommandTag
}

// mapsReader accumulates rows keyed by column name. Duplicate column names
// keep the last value.
type mapsReader struct {
	m      *codec.Map
	fields []proto.FieldDescription
	rows   []map[string]interface{}
}

func (r *mapsReader) Describe(fields []proto.FieldDescription) error {
	r.fields = copyFields(fields)
	return nil
}

func (r *mapsReader) Row(values [][]byte) error {
	row, err := decodeRow(r.m, r.fields, values)
	if err != nil {
		return err
	}

	m := make(map[string]interface{}, len(row))
	for i, v := range row {
		m[r.fields[i].Name] = v
	}
	r.rows = append(r.rows, m)
	return nil
}

func (r *mapsReader) Complete(tag CommandTag) (interface{}, error) {
	result := &MapResult{Fields: r.fields, Rows: r.rows, CommandTag: tag}
	r.fields = nil
	r.rows = nil
	return result, nil
}

// discardReader drops rows and keeps only the status tag.
type discardReader struct{}

func (discardReader) Describe([]proto.FieldDescription) error { return nil }
func (discardReader) Row([][]byte) error                      { return nil }
func (discardReader) Complete(tag CommandTag) (interface{}, error) {
	return tag, nil
}

func decodeRow(m *codec.Map, fields []proto.FieldDescription, values [][]byte) ([]interface{}, error) {
	row := make([]interface{}, len(values))
	for i, src := range values {
		var (
			oid    codec.OID
			format int16
		)
		if i < len(fields) {
			oid = codec.OID(fields[i].DataTypeOID)
			format = fields[i].Format
		}

		v, err := m.Decode(oid, format, src)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

// copyFields deep-copies a row description out of the frontend's reusable
// message struct.
func copyFields(fields []proto.FieldDescription) []proto.FieldDescription {
	out := make([]proto.FieldDescription, len(fields))
	copy(out, fields)
	return out
}
