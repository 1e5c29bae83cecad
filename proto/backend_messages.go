package proto

import (
	"bytes"
	"encoding/binary"
)

// Authentication message type constants.
const (
	AuthTypeOk                = 0
	AuthTypeCleartextPassword = 3
	AuthTypeMD5Password       = 5
	AuthTypeSASL              = 10
	AuthTypeSASLContinue      = 11
	AuthTypeSASLFinal         = 12
)

// Authentication is the family of messages the backend sends during the
// authentication exchange. All begin with the tag 'R'; Type selects the
// variant.
type Authentication struct {
	Type uint32

	// MD5Password fields
	Salt [4]byte

	// SASL fields
	SASLAuthMechanisms []string

	// SASLContinue and SASLFinal data
	SASLData []byte
}

func (*Authentication) Backend() {}

func (dst *Authentication) Decode(src []byte) error {
	if len(src) < 4 {
		return &invalidMessageFormatErr{messageType: "Authentication"}
	}
	*dst = Authentication{Type: binary.BigEndian.Uint32(src[:4])}

	switch dst.Type {
	case AuthTypeOk:
	case AuthTypeCleartextPassword:
	case AuthTypeMD5Password:
		if len(src) != 8 {
			return &invalidMessageLenErr{messageType: "AuthenticationMD5Password", expectedLen: 8, actualLen: len(src)}
		}
		copy(dst.Salt[:], src[4:8])
	case AuthTypeSASL:
		authMechanisms := src[4:]
		for len(authMechanisms) > 1 {
			idx := bytes.IndexByte(authMechanisms, 0)
			if idx <= 0 {
				break
			}
			dst.SASLAuthMechanisms = append(dst.SASLAuthMechanisms, string(authMechanisms[:idx]))
			authMechanisms = authMechanisms[idx+1:]
		}
	case AuthTypeSASLContinue, AuthTypeSASLFinal:
		dst.SASLData = src[4:]
	}

	return nil
}

// BackendKeyData carries the identity needed to issue a CancelRequest for
// this connection.
type BackendKeyData struct {
	ProcessID uint32
	SecretKey uint32
}

func (*BackendKeyData) Backend() {}

func (dst *BackendKeyData) Decode(src []byte) error {
	if len(src) != 8 {
		return &invalidMessageLenErr{messageType: "BackendKeyData", expectedLen: 8, actualLen: len(src)}
	}

	dst.ProcessID = binary.BigEndian.Uint32(src[:4])
	dst.SecretKey = binary.BigEndian.Uint32(src[4:])

	return nil
}

// ParameterStatus reports the current value of a server run-time parameter.
// The server re-sends it whenever the value changes.
type ParameterStatus struct {
	Name  string
	Value string
}

func (*ParameterStatus) Backend() {}

func (dst *ParameterStatus) Decode(src []byte) error {
	buf := bytes.NewBuffer(src)

	b, err := buf.ReadBytes(0)
	if err != nil {
		return &invalidMessageFormatErr{messageType: "ParameterStatus"}
	}
	name := string(b[:len(b)-1])

	b, err = buf.ReadBytes(0)
	if err != nil {
		return &invalidMessageFormatErr{messageType: "ParameterStatus"}
	}
	value := string(b[:len(b)-1])

	*dst = ParameterStatus{Name: name, Value: value}
	return nil
}

// Transaction status byte values carried by ReadyForQuery.
const (
	TxStatusIdle                = 'I'
	TxStatusInTransaction       = 'T'
	TxStatusInFailedTransaction = 'E'
)

// ReadyForQuery marks the server as ready for the next query cycle.
type ReadyForQuery struct {
	TxStatus byte
}

func (*ReadyForQuery) Backend() {}

func (dst *ReadyForQuery) Decode(src []byte) error {
	if len(src) != 1 {
		return &invalidMessageLenErr{messageType: "ReadyForQuery", expectedLen: 1, actualLen: len(src)}
	}

	dst.TxStatus = src[0]

	return nil
}

// CommandComplete terminates one statement's result cycle.
type CommandComplete struct {
	CommandTag []byte
}

func (*CommandComplete) Backend() {}

func (dst *CommandComplete) Decode(src []byte) error {
	idx := bytes.IndexByte(src, 0)
	if idx != len(src)-1 {
		return &invalidMessageFormatErr{messageType: "CommandComplete"}
	}

	dst.CommandTag = src[:idx]

	return nil
}

// EmptyQueryResponse substitutes for CommandComplete when the query string
// was empty.
type EmptyQueryResponse struct{}

func (*EmptyQueryResponse) Backend() {}

func (dst *EmptyQueryResponse) Decode(src []byte) error {
	if len(src) != 0 {
		return &invalidMessageLenErr{messageType: "EmptyQueryResponse", expectedLen: 0, actualLen: len(src)}
	}
	return nil
}

type ParseComplete struct{}

func (*ParseComplete) Backend() {}

func (dst *ParseComplete) Decode(src []byte) error {
	if len(src) != 0 {
		return &invalidMessageLenErr{messageType: "ParseComplete", expectedLen: 0, actualLen: len(src)}
	}
	return nil
}

type BindComplete struct{}

func (*BindComplete) Backend() {}

func (dst *BindComplete) Decode(src []byte) error {
	if len(src) != 0 {
		return &invalidMessageLenErr{messageType: "BindComplete", expectedLen: 0, actualLen: len(src)}
	}
	return nil
}

type CloseComplete struct{}

func (*CloseComplete) Backend() {}

func (dst *CloseComplete) Decode(src []byte) error {
	if len(src) != 0 {
		return &invalidMessageLenErr{messageType: "CloseComplete", expectedLen: 0, actualLen: len(src)}
	}
	return nil
}

// NoData replaces RowDescription when describing a statement that returns
// no rows.
type NoData struct{}

func (*NoData) Backend() {}

func (dst *NoData) Decode(src []byte) error {
	if len(src) != 0 {
		return &invalidMessageLenErr{messageType: "NoData", expectedLen: 0, actualLen: len(src)}
	}
	return nil
}

// PortalSuspended reports that Execute stopped before exhausting the portal.
type PortalSuspended struct{}

func (*PortalSuspended) Backend() {}

func (dst *PortalSuspended) Decode(src []byte) error {
	if len(src) != 0 {
		return &invalidMessageLenErr{messageType: "PortalSuspended", expectedLen: 0, actualLen: len(src)}
	}
	return nil
}

// ParameterDescription lists the inferred or declared parameter type OIDs of
// a described prepared statement.
type ParameterDescription struct {
	ParameterOIDs []uint32
}

func (*ParameterDescription) Backend() {}

func (dst *ParameterDescription) Decode(src []byte) error {
	if len(src) < 2 {
		return &invalidMessageFormatErr{messageType: "ParameterDescription"}
	}
	count := int(binary.BigEndian.Uint16(src))
	rp := 2

	if len(src[rp:]) != count*4 {
		return &invalidMessageFormatErr{messageType: "ParameterDescription"}
	}

	dst.ParameterOIDs = make([]uint32, count)
	for i := 0; i < count; i++ {
		dst.ParameterOIDs[i] = binary.BigEndian.Uint32(src[rp:])
		rp += 4
	}

	return nil
}

// FieldDescription is the per-column metadata of a result set.
type FieldDescription struct {
	Name                 string
	TableOID             uint32
	TableAttributeNumber uint16
	DataTypeOID          uint32
	DataTypeSize         int16 // negative means variable-length
	TypeModifier         int32
	Format               int16
}

// RowDescription describes the shape of the rows that follow.
type RowDescription struct {
	Fields []FieldDescription
}

func (*RowDescription) Backend() {}

func (dst *RowDescription) Decode(src []byte) error {
	if len(src) < 2 {
		return &invalidMessageFormatErr{messageType: "RowDescription"}
	}
	fieldCount := int(binary.BigEndian.Uint16(src))
	rp := 2

	dst.Fields = make([]FieldDescription, fieldCount)

	for i := 0; i < fieldCount; i++ {
		idx := bytes.IndexByte(src[rp:], 0)
		if idx < 0 {
			return &invalidMessageFormatErr{messageType: "RowDescription"}
		}
		dst.Fields[i].Name = string(src[rp : rp+idx])
		rp += idx + 1

		if len(src[rp:]) < 18 {
			return &invalidMessageFormatErr{messageType: "RowDescription"}
		}

		dst.Fields[i].TableOID = binary.BigEndian.Uint32(src[rp:])
		rp += 4
		dst.Fields[i].TableAttributeNumber = binary.BigEndian.Uint16(src[rp:])
		rp += 2
		dst.Fields[i].DataTypeOID = binary.BigEndian.Uint32(src[rp:])
		rp += 4
		dst.Fields[i].DataTypeSize = int16(binary.BigEndian.Uint16(src[rp:]))
		rp += 2
		dst.Fields[i].TypeModifier = int32(binary.BigEndian.Uint32(src[rp:]))
		rp += 4
		dst.Fields[i].Format = int16(binary.BigEndian.Uint16(src[rp:]))
		rp += 2
	}

	return nil
}

// DataRow is one result row. A nil element of Values is SQL NULL. Values
// reference the receive buffer and are only valid until the next Receive.
type DataRow struct {
	Values [][]byte
}

func (*DataRow) Backend() {}

func (dst *DataRow) Decode(src []byte) error {
	if len(src) < 2 {
		return &invalidMessageFormatErr{messageType: "DataRow"}
	}
	fieldCount := int(binary.BigEndian.Uint16(src))
	rp := 2

	// Reuse the existing slice when the shape repeats, as it does for every
	// row of a result set.
	if cap(dst.Values) < fieldCount {
		dst.Values = make([][]byte, fieldCount)
	} else {
		dst.Values = dst.Values[:fieldCount]
	}

	for i := 0; i < fieldCount; i++ {
		if len(src[rp:]) < 4 {
			return &invalidMessageFormatErr{messageType: "DataRow"}
		}

		valueLen := int(int32(binary.BigEndian.Uint32(src[rp:])))
		rp += 4

		if valueLen == -1 {
			dst.Values[i] = nil
			continue
		}

		if len(src[rp:]) < valueLen {
			return &invalidMessageFormatErr{messageType: "DataRow"}
		}

		dst.Values[i] = src[rp : rp+valueLen : rp+valueLen]
		rp += valueLen
	}

	return nil
}

// CopyInResponse announces that the server is ready to receive COPY data.
type CopyInResponse struct {
	OverallFormat     byte
	ColumnFormatCodes []uint16
}

func (*CopyInResponse) Backend() {}

func (dst *CopyInResponse) Decode(src []byte) error {
	return decodeCopyResponse(src, "CopyInResponse", &dst.OverallFormat, &dst.ColumnFormatCodes)
}

// CopyOutResponse announces that COPY data from the server follows.
type CopyOutResponse struct {
	OverallFormat     byte
	ColumnFormatCodes []uint16
}

func (*CopyOutResponse) Backend() {}

func (dst *CopyOutResponse) Decode(src []byte) error {
	return decodeCopyResponse(src, "CopyOutResponse", &dst.OverallFormat, &dst.ColumnFormatCodes)
}

func decodeCopyResponse(src []byte, messageType string, overallFormat *byte, columnFormatCodes *[]uint16) error {
	if len(src) < 3 {
		return &invalidMessageFormatErr{messageType: messageType}
	}

	*overallFormat = src[0]

	columnCount := int(binary.BigEndian.Uint16(src[1:]))
	if len(src[3:]) != columnCount*2 {
		return &invalidMessageFormatErr{messageType: messageType}
	}

	codes := make([]uint16, columnCount)
	rp := 3
	for i := 0; i < columnCount; i++ {
		codes[i] = binary.BigEndian.Uint16(src[rp:])
		rp += 2
	}
	*columnFormatCodes = codes

	return nil
}

// NotificationResponse delivers a LISTEN/NOTIFY event.
type NotificationResponse struct {
	PID     uint32
	Channel string
	Payload string
}

func (*NotificationResponse) Backend() {}

func (dst *NotificationResponse) Decode(src []byte) error {
	if len(src) < 4 {
		return &invalidMessageFormatErr{messageType: "NotificationResponse"}
	}
	pid := binary.BigEndian.Uint32(src)

	buf := bytes.NewBuffer(src[4:])

	b, err := buf.ReadBytes(0)
	if err != nil {
		return &invalidMessageFormatErr{messageType: "NotificationResponse"}
	}
	channel := string(b[:len(b)-1])

	b, err = buf.ReadBytes(0)
	if err != nil {
		return &invalidMessageFormatErr{messageType: "NotificationResponse"}
	}
	payload := string(b[:len(b)-1])

	*dst = NotificationResponse{PID: pid, Channel: channel, Payload: payload}
	return nil
}
