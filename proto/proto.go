// Package proto implements the client side of the PostgreSQL version 3 wire
// protocol: framing of tagged, length-prefixed messages and the encoding and
// decoding of the individual message types.
//
// The package has no knowledge of SQL or of PostgreSQL data types. It is the
// transport layer used by the root pgwire package.
package proto

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jackc/chunkreader/v2"
)

// ProtocolVersionNumber is the only protocol version supported: 3.0.
const ProtocolVersionNumber = 196608 // 3 << 16

// Format codes for parameter and result values.
const (
	TextFormat   int16 = 0
	BinaryFormat int16 = 1
)

// maxMessageBodyLen bounds the advertised body length of an incoming message.
// Anything larger is treated as a framing failure rather than an allocation
// request.
const maxMessageBodyLen = 1 << 28

// minMessageBodyLen is the self-inclusive length field alone.
const minMessageBodyLen = 4

// FrontendMessage is a message sent by the frontend (i.e. the client).
type FrontendMessage interface {
	// Encode appends the complete message, including the tag byte and length
	// word, to dst and returns the extended buffer.
	Encode(dst []byte) []byte

	Frontend() // no-op method to distinguish frontend from backend messages
}

// BackendMessage is a message sent by the backend (i.e. the server).
type BackendMessage interface {
	// Decode interprets data as the message body, excluding the tag byte and
	// length word. Decode is allowed to retain a reference to data; the caller
	// must not reuse it.
	Decode(data []byte) error

	Backend() // no-op method to distinguish backend from frontend messages
}

// FramingError reports a violation of the message framing layer: a stream
// that ended mid-message, or a length word that cannot describe a real
// message. It is a local error and never represents a server-reported error.
type FramingError struct {
	msg string
	err error
}

func (e *FramingError) Error() string {
	if e.err == nil {
		return "protocol framing: " + e.msg
	}
	return fmt.Sprintf("protocol framing: %s: %v", e.msg, e.err)
}

func (e *FramingError) Unwrap() error { return e.err }

type unknownMessageTypeError struct {
	tag byte
}

func (e *unknownMessageTypeError) Error() string {
	return fmt.Sprintf("unknown message type: %c", e.tag)
}

// Frontend acts as a client for the PostgreSQL wire protocol. It is not safe
// for concurrent use.
type Frontend struct {
	cr *chunkreader.ChunkReader
	w  io.Writer

	wbuf []byte

	// Backend message flyweights. Receive returns a pointer into this struct,
	// valid until the next call to Receive.
	authentication       Authentication
	backendKeyData       BackendKeyData
	bindComplete         BindComplete
	closeComplete        CloseComplete
	commandComplete      CommandComplete
	copyInResponse       CopyInResponse
	copyOutResponse      CopyOutResponse
	copyData             CopyData
	copyDone             CopyDone
	dataRow              DataRow
	emptyQueryResponse   EmptyQueryResponse
	errorResponse        ErrorResponse
	noData               NoData
	noticeResponse       NoticeResponse
	notificationResponse NotificationResponse
	parameterDescription ParameterDescription
	parameterStatus      ParameterStatus
	parseComplete        ParseComplete
	portalSuspended      PortalSuspended
	readyForQuery        ReadyForQuery
	rowDescription       RowDescription
}

// NewFrontend creates a Frontend that reads backend messages from r and
// writes frontend messages to w.
func NewFrontend(r io.Reader, w io.Writer) *Frontend {
	return &Frontend{cr: chunkreader.New(r), w: w}
}

// Send buffers msg. It is not written until Flush is called.
func (f *Frontend) Send(msg FrontendMessage) {
	f.wbuf = msg.Encode(f.wbuf)
}

// Flush writes all buffered messages to the backend.
func (f *Frontend) Flush() error {
	if len(f.wbuf) == 0 {
		return nil
	}

	_, err := f.w.Write(f.wbuf)

	const maxRetainedLen = 4096
	if cap(f.wbuf) > maxRetainedLen {
		f.wbuf = nil
	} else {
		f.wbuf = f.wbuf[:0]
	}

	return err
}

// SendFlush sends msgs as a single write.
func (f *Frontend) SendFlush(msgs ...FrontendMessage) error {
	for _, msg := range msgs {
		f.Send(msg)
	}
	return f.Flush()
}

// Receive blocks until a complete backend message has been read and returns
// it. The returned message is only valid until the next call to Receive.
//
// A stream that closes mid-message or advertises an implausible body length
// fails with a *FramingError.
func (f *Frontend) Receive() (BackendMessage, error) {
	header, err := f.cr.Next(5)
	if err != nil {
		return nil, &FramingError{msg: "read message header", err: err}
	}

	tag := header[0]
	bodyLen := int(binary.BigEndian.Uint32(header[1:])) - 4
	if bodyLen < minMessageBodyLen-4 || bodyLen > maxMessageBodyLen {
		return nil, &FramingError{msg: fmt.Sprintf("invalid message body length %d for message %c", bodyLen, tag)}
	}

	var msg BackendMessage
	switch tag {
	case 'R':
		msg = &f.authentication
	case 'K':
		msg = &f.backendKeyData
	case '2':
		msg = &f.bindComplete
	case '3':
		msg = &f.closeComplete
	case 'C':
		msg = &f.commandComplete
	case 'G':
		msg = &f.copyInResponse
	case 'H':
		msg = &f.copyOutResponse
	case 'd':
		msg = &f.copyData
	case 'c':
		msg = &f.copyDone
	case 'D':
		msg = &f.dataRow
	case 'I':
		msg = &f.emptyQueryResponse
	case 'E':
		msg = &f.errorResponse
	case 'n':
		msg = &f.noData
	case 'N':
		msg = &f.noticeResponse
	case 'A':
		msg = &f.notificationResponse
	case 't':
		msg = &f.parameterDescription
	case 'S':
		msg = &f.parameterStatus
	case '1':
		msg = &f.parseComplete
	case 's':
		msg = &f.portalSuspended
	case 'Z':
		msg = &f.readyForQuery
	case 'T':
		msg = &f.rowDescription
	default:
		return nil, &unknownMessageTypeError{tag: tag}
	}

	body, err := f.cr.Next(bodyLen)
	if err != nil {
		return nil, &FramingError{msg: fmt.Sprintf("read body of message %c", tag), err: err}
	}

	if err := msg.Decode(body); err != nil {
		return nil, err
	}

	return msg, nil
}

type invalidMessageLenErr struct {
	messageType string
	expectedLen int
	actualLen   int
}

func (e *invalidMessageLenErr) Error() string {
	return fmt.Sprintf("%s body must have length of %d, but it is %d", e.messageType, e.expectedLen, e.actualLen)
}

type invalidMessageFormatErr struct {
	messageType string
}

func (e *invalidMessageFormatErr) Error() string {
	return e.messageType + " body is invalid"
}
