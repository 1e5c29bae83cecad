package proto

import (
	"github.com/jackc/pgio"
)

// StartupMessage is the first message of a connection. It is untagged: the
// body begins directly with the length word.
type StartupMessage struct {
	ProtocolVersion uint32
	Parameters      map[string]string
}

func (*StartupMessage) Frontend() {}

func (src *StartupMessage) Encode(dst []byte) []byte {
	sp := len(dst)
	dst = pgio.AppendInt32(dst, -1)

	dst = pgio.AppendUint32(dst, src.ProtocolVersion)
	for k, v := range src.Parameters {
		dst = append(dst, k...)
		dst = append(dst, 0)
		dst = append(dst, v...)
		dst = append(dst, 0)
	}
	dst = append(dst, 0)

	pgio.SetInt32(dst[sp:], int32(len(dst[sp:])))

	return dst
}

// SSLRequest asks the server to switch the stream to TLS. Untagged, and the
// server answers with a single 'S' or 'N' byte rather than a message.
type SSLRequest struct{}

const sslRequestNumber = 80877103

func (*SSLRequest) Frontend() {}

func (src *SSLRequest) Encode(dst []byte) []byte {
	dst = pgio.AppendInt32(dst, 8)
	dst = pgio.AppendInt32(dst, sslRequestNumber)
	return dst
}

// CancelRequest is sent on a separate connection to request cancellation of
// a query in progress on the connection identified by ProcessID and SecretKey.
type CancelRequest struct {
	ProcessID uint32
	SecretKey uint32
}

const cancelRequestCode = 80877102

func (*CancelRequest) Frontend() {}

func (src *CancelRequest) Encode(dst []byte) []byte {
	dst = pgio.AppendInt32(dst, 16)
	dst = pgio.AppendInt32(dst, cancelRequestCode)
	dst = pgio.AppendUint32(dst, src.ProcessID)
	dst = pgio.AppendUint32(dst, src.SecretKey)
	return dst
}

type PasswordMessage struct {
	Password string
}

func (*PasswordMessage) Frontend() {}

func (src *PasswordMessage) Encode(dst []byte) []byte {
	dst = append(dst, 'p')
	dst = pgio.AppendInt32(dst, int32(4+len(src.Password)+1))
	dst = append(dst, src.Password...)
	dst = append(dst, 0)
	return dst
}

// SASLInitialResponse carries the selected SASL mechanism and the
// client-first-message.
type SASLInitialResponse struct {
	AuthMechanism string
	Data          []byte
}

func (*SASLInitialResponse) Frontend() {}

func (src *SASLInitialResponse) Encode(dst []byte) []byte {
	dst = append(dst, 'p')
	sp := len(dst)
	dst = pgio.AppendInt32(dst, -1)

	dst = append(dst, src.AuthMechanism...)
	dst = append(dst, 0)
	dst = pgio.AppendInt32(dst, int32(len(src.Data)))
	dst = append(dst, src.Data...)

	pgio.SetInt32(dst[sp:], int32(len(dst[sp:])))

	return dst
}

// SASLResponse carries a subsequent SASL client message.
type SASLResponse struct {
	Data []byte
}

func (*SASLResponse) Frontend() {}

func (src *SASLResponse) Encode(dst []byte) []byte {
	dst = append(dst, 'p')
	dst = pgio.AppendInt32(dst, int32(4+len(src.Data)))
	dst = append(dst, src.Data...)
	return dst
}

// Query executes sql via the simple query protocol. sql may contain multiple
// statements separated by semicolons.
type Query struct {
	String string
}

func (*Query) Frontend() {}

func (src *Query) Encode(dst []byte) []byte {
	dst = append(dst, 'Q')
	dst = pgio.AppendInt32(dst, int32(4+len(src.String)+1))
	dst = append(dst, src.String...)
	dst = append(dst, 0)
	return dst
}

// Parse creates a prepared statement on the server.
type Parse struct {
	Name          string
	Query         string
	ParameterOIDs []uint32
}

func (*Parse) Frontend() {}

func (src *Parse) Encode(dst []byte) []byte {
	dst = append(dst, 'P')
	sp := len(dst)
	dst = pgio.AppendInt32(dst, -1)

	dst = append(dst, src.Name...)
	dst = append(dst, 0)
	dst = append(dst, src.Query...)
	dst = append(dst, 0)

	dst = pgio.AppendUint16(dst, uint16(len(src.ParameterOIDs)))
	for _, oid := range src.ParameterOIDs {
		dst = pgio.AppendUint32(dst, oid)
	}

	pgio.SetInt32(dst[sp:], int32(len(dst[sp:])))

	return dst
}

// Bind creates a portal from a prepared statement and a set of parameter
// values. A nil element of Parameters encodes as SQL NULL (length -1).
type Bind struct {
	DestinationPortal    string
	PreparedStatement    string
	ParameterFormatCodes []int16
	Parameters           [][]byte
	ResultFormatCodes    []int16
}

func (*Bind) Frontend() {}

func (src *Bind) Encode(dst []byte) []byte {
	dst = append(dst, 'B')
	sp := len(dst)
	dst = pgio.AppendInt32(dst, -1)

	dst = append(dst, src.DestinationPortal...)
	dst = append(dst, 0)
	dst = append(dst, src.PreparedStatement...)
	dst = append(dst, 0)

	dst = pgio.AppendUint16(dst, uint16(len(src.ParameterFormatCodes)))
	for _, fc := range src.ParameterFormatCodes {
		dst = pgio.AppendInt16(dst, fc)
	}

	dst = pgio.AppendUint16(dst, uint16(len(src.Parameters)))
	for _, p := range src.Parameters {
		if p == nil {
			dst = pgio.AppendInt32(dst, -1)
			continue
		}

		dst = pgio.AppendInt32(dst, int32(len(p)))
		dst = append(dst, p...)
	}

	dst = pgio.AppendUint16(dst, uint16(len(src.ResultFormatCodes)))
	for _, fc := range src.ResultFormatCodes {
		dst = pgio.AppendInt16(dst, fc)
	}

	pgio.SetInt32(dst[sp:], int32(len(dst[sp:])))

	return dst
}

// Describe requests the description of a prepared statement ('S') or
// portal ('P').
type Describe struct {
	ObjectType byte // 'S' = prepared statement, 'P' = portal
	Name       string
}

func (*Describe) Frontend() {}

func (src *Describe) Encode(dst []byte) []byte {
	dst = append(dst, 'D')
	dst = pgio.AppendInt32(dst, int32(4+1+len(src.Name)+1))
	dst = append(dst, src.ObjectType)
	dst = append(dst, src.Name...)
	dst = append(dst, 0)
	return dst
}

// Execute runs a bound portal. MaxRows of 0 fetches all rows.
type Execute struct {
	Portal  string
	MaxRows uint32
}

func (*Execute) Frontend() {}

func (src *Execute) Encode(dst []byte) []byte {
	dst = append(dst, 'E')
	dst = pgio.AppendInt32(dst, int32(4+len(src.Portal)+1+4))
	dst = append(dst, src.Portal...)
	dst = append(dst, 0)
	dst = pgio.AppendUint32(dst, src.MaxRows)
	return dst
}

// Close releases a prepared statement ('S') or portal ('P') on the server.
type Close struct {
	ObjectType byte // 'S' = prepared statement, 'P' = portal
	Name       string
}

func (*Close) Frontend() {}

func (src *Close) Encode(dst []byte) []byte {
	dst = append(dst, 'C')
	dst = pgio.AppendInt32(dst, int32(4+1+len(src.Name)+1))
	dst = append(dst, src.ObjectType)
	dst = append(dst, src.Name...)
	dst = append(dst, 0)
	return dst
}

// Sync closes the current extended-query batch; the server responds with
// ReadyForQuery after processing it.
type Sync struct{}

func (*Sync) Frontend() {}

func (src *Sync) Encode(dst []byte) []byte {
	return append(dst, 'S', 0, 0, 0, 4)
}

// Flush asks the server to deliver any pending responses without closing the
// batch.
type Flush struct{}

func (*Flush) Frontend() {}

func (src *Flush) Encode(dst []byte) []byte {
	return append(dst, 'H', 0, 0, 0, 4)
}

// CopyFail aborts a COPY-in session; the server rolls back the COPY and
// reports an error carrying Message.
type CopyFail struct {
	Message string
}

func (*CopyFail) Frontend() {}

func (src *CopyFail) Encode(dst []byte) []byte {
	dst = append(dst, 'f')
	dst = pgio.AppendInt32(dst, int32(4+len(src.Message)+1))
	dst = append(dst, src.Message...)
	dst = append(dst, 0)
	return dst
}

// Terminate announces an orderly close of the connection.
type Terminate struct{}

func (*Terminate) Frontend() {}

func (src *Terminate) Encode(dst []byte) []byte {
	return append(dst, 'X', 0, 0, 0, 4)
}
