package pgwire

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgio"

	"github.com/pgkit/pgwire/codec"
	"github.com/pgkit/pgwire/proto"
)

// copyFlushThreshold is the buffered byte count past which WriteRow sends a
// CopyData frame.
const copyFlushThreshold = 65536

// binaryCopySignature starts the COPY binary format header, followed by a
// zero flags word and a zero extension area length.
var binaryCopySignature = []byte("PGCOPY\n\377\r\n\000")

// CopyStream writes rows into an open COPY ... FROM STDIN (FORMAT BINARY)
// session. The stream owns the connection until Close or Abort.
type CopyStream struct {
	c             *Conn
	columnOIDs    []codec.OID
	buf           []byte
	finished      bool
	clearDeadline func()
}

// CopyFrom starts a bulk load. sql must be a COPY ... FROM STDIN (FORMAT
// BINARY) statement and columnOIDs must describe the copy columns in order;
// each row value is encoded with the codec registered for its column's OID.
//
// The connection refuses other traffic until the returned stream is closed
// or aborted.
func (c *Conn) CopyFrom(ctx context.Context, sql string, columnOIDs []codec.OID) (*CopyStream, error) {
	if err := c.lock(); err != nil {
		return nil, err
	}

	// The deadline stays on the socket for the whole copy session; Close and
	// Abort lift it.
	clearDeadline := c.applyDeadline(ctx)
	fail := func(err error) (*CopyStream, error) {
		clearDeadline()
		c.unlock()
		return nil, err
	}

	if c.shouldLog(LogLevelDebug) {
		c.log(ctx, LogLevelDebug, "copy from", map[string]interface{}{"sql": sql})
	}

	if err := c.frontend.SendFlush(&proto.Query{String: sql}); err != nil {
		c.die(err)
		return fail(err)
	}

	for {
		msg, err := c.receiveMessage()
		if err != nil {
			return fail(err)
		}

		switch msg := msg.(type) {
		case *proto.CopyInResponse:
			stream := &CopyStream{c: c, columnOIDs: columnOIDs, clearDeadline: clearDeadline}
			stream.buf = append(stream.buf, binaryCopySignature...)
			stream.buf = pgio.AppendInt32(stream.buf, 0) // flags
			stream.buf = pgio.AppendInt32(stream.buf, 0) // header extension length
			return stream, nil
		case *proto.ErrorResponse:
			pgErr := errorResponseToPgError(msg)
			if err := c.drainToReadyForQuery(); err != nil {
				return fail(err)
			}
			return fail(pgErr)
		case *proto.ReadyForQuery:
			return fail(errors.New("statement did not start a COPY FROM STDIN session"))
		}
	}
}

// drainToReadyForQuery consumes and discards messages until ReadyForQuery.
func (c *Conn) drainToReadyForQuery() error {
	for {
		msg, err := c.receiveMessage()
		if err != nil {
			return err
		}
		if _, ok := msg.(*proto.ReadyForQuery); ok {
			return nil
		}
	}
}

// WriteRow appends one row to the stream. Values are buffered and sent as
// CopyData frames once enough accumulate; there is no per-row round trip.
func (s *CopyStream) WriteRow(values ...interface{}) error {
	if s.finished {
		return errors.New("copy stream is closed")
	}
	if len(values) != len(s.columnOIDs) {
		return fmt.Errorf("copy row has %d values, %d columns declared", len(values), len(s.columnOIDs))
	}

	s.buf = pgio.AppendInt16(s.buf, int16(len(values)))
	for i, v := range values {
		var err error
		s.buf, err = s.c.codecMap.EncodeValue(s.columnOIDs[i], s.buf, v)
		if err != nil {
			return err
		}
	}

	if len(s.buf) > copyFlushThreshold {
		return s.flush()
	}
	return nil
}

func (s *CopyStream) flush() error {
	if len(s.buf) == 0 {
		return nil
	}

	err := s.c.frontend.SendFlush(&proto.CopyData{Data: s.buf})
	s.buf = s.buf[:0]
	if err != nil {
		s.c.die(err)
	}
	return err
}

// Close writes the binary trailer, finishes the COPY, and returns the
// server's command tag.
func (s *CopyStream) Close(ctx context.Context) (CommandTag, error) {
	if s.finished {
		return "", errors.New("copy stream is closed")
	}
	s.finished = true
	defer s.c.unlock()
	defer s.clearDeadline()
	defer s.c.applyDeadline(ctx)()

	s.buf = pgio.AppendInt16(s.buf, -1)
	if err := s.flush(); err != nil {
		return "", err
	}

	if err := s.c.frontend.SendFlush(&proto.CopyDone{}); err != nil {
		s.c.die(err)
		return "", err
	}

	var (
		tag      CommandTag
		cycleErr error
	)
	for {
		msg, err := s.c.receiveMessage()
		if err != nil {
			return "", err
		}

		switch msg := msg.(type) {
		case *proto.CommandComplete:
			tag = CommandTag(msg.CommandTag)
		case *proto.ErrorResponse:
			cycleErr = errorResponseToPgError(msg)
		case *proto.ReadyForQuery:
			return tag, cycleErr
		}
	}
}

// Abort cancels the COPY with the given diagnostic. The server answers with
// an error, which Abort drains; the connection remains usable.
func (s *CopyStream) Abort(ctx context.Context, reason string) error {
	if s.finished {
		return errors.New("copy stream is closed")
	}
	s.finished = true
	s.buf = nil
	defer s.c.unlock()
	defer s.clearDeadline()
	defer s.c.applyDeadline(ctx)()

	if err := s.c.frontend.SendFlush(&proto.CopyFail{Message: reason}); err != nil {
		s.c.die(err)
		return err
	}

	var cycleErr error
	for {
		msg, err := s.c.receiveMessage()
		if err != nil {
			return err
		}

		switch msg := msg.(type) {
		case *proto.ErrorResponse:
			cycleErr = errorResponseToPgError(msg)
		case *proto.ReadyForQuery:
			return cycleErr
		}
	}
}
