package proto

import (
	"bytes"
	"strconv"
)

// ErrorResponse reports a server error. The body is a sequence of
// (field code byte, null-terminated string) pairs terminated by a zero byte.
// See https://www.postgresql.org/docs/current/protocol-error-fields.html.
type ErrorResponse struct {
	Severity            string
	SeverityUnlocalized string
	Code                string
	Message             string
	Detail              string
	Hint                string
	Position            int32
	InternalPosition    int32
	InternalQuery       string
	Where               string
	SchemaName          string
	TableName           string
	ColumnName          string
	DataTypeName        string
	ConstraintName      string
	File                string
	Line                int32
	Routine             string

	UnknownFields map[byte]string
}

func (*ErrorResponse) Backend() {}

func (dst *ErrorResponse) Decode(src []byte) error {
	*dst = ErrorResponse{}
	return dst.decodeFields(src)
}

func (dst *ErrorResponse) decodeFields(src []byte) error {
	buf := bytes.NewBuffer(src)

	for {
		k, err := buf.ReadByte()
		if err != nil {
			return &invalidMessageFormatErr{messageType: "ErrorResponse"}
		}
		if k == 0 {
			return nil
		}

		vb, err := buf.ReadBytes(0)
		if err != nil {
			return &invalidMessageFormatErr{messageType: "ErrorResponse"}
		}
		v := string(vb[:len(vb)-1])

		switch k {
		case 'S':
			dst.Severity = v
		case 'V':
			dst.SeverityUnlocalized = v
		case 'C':
			dst.Code = v
		case 'M':
			dst.Message = v
		case 'D':
			dst.Detail = v
		case 'H':
			dst.Hint = v
		case 'P':
			n, _ := strconv.ParseInt(v, 10, 32)
			dst.Position = int32(n)
		case 'p':
			n, _ := strconv.ParseInt(v, 10, 32)
			dst.InternalPosition = int32(n)
		case 'q':
			dst.InternalQuery = v
		case 'W':
			dst.Where = v
		case 's':
			dst.SchemaName = v
		case 't':
			dst.TableName = v
		case 'c':
			dst.ColumnName = v
		case 'd':
			dst.DataTypeName = v
		case 'n':
			dst.ConstraintName = v
		case 'F':
			dst.File = v
		case 'L':
			n, _ := strconv.ParseInt(v, 10, 32)
			dst.Line = int32(n)
		case 'R':
			dst.Routine = v
		default:
			if dst.UnknownFields == nil {
				dst.UnknownFields = make(map[byte]string)
			}
			dst.UnknownFields[k] = v
		}
	}
}

// NoticeResponse is a warning or informational message. It shares the field
// layout of ErrorResponse but is delivered out of band and is never an error.
type NoticeResponse ErrorResponse

func (*NoticeResponse) Backend() {}

func (dst *NoticeResponse) Decode(src []byte) error {
	*dst = NoticeResponse{}
	return (*ErrorResponse)(dst).decodeFields(src)
}
