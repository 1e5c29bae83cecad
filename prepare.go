package pgwire

import (
	"context"
	"fmt"

	"github.com/pgkit/pgwire/codec"
	"github.com/pgkit/pgwire/proto"
)

// PreparedStatement is the server-side description of a named statement. It
// is immutable after Prepare; schema changes on the server are not tracked.
type PreparedStatement struct {
	Name          string
	SQL           string
	ParameterOIDs []codec.OID
	Fields        []proto.FieldDescription
}

// Prepare creates a named prepared statement and describes it. The parameter
// types are inferred by the server.
//
// Preparing a name that is already prepared on this connection is an error,
// even with identical SQL. Deallocate the name first.
func (c *Conn) Prepare(ctx context.Context, name, sql string) (*PreparedStatement, error) {
	if _, present := c.preparedStatements[name]; present {
		return nil, &StatementNameError{Name: name, msg: "is already prepared"}
	}

	endExchange, err := c.beginExchange(ctx)
	if err != nil {
		return nil, err
	}
	defer endExchange()

	if c.shouldLog(LogLevelDebug) {
		c.log(ctx, LogLevelDebug, "prepare", map[string]interface{}{"name": name, "sql": sql})
	}

	err = c.frontend.SendFlush(
		&proto.Parse{Name: name, Query: sql},
		&proto.Describe{ObjectType: 'S', Name: name},
		&proto.Sync{},
	)
	if err != nil {
		c.die(err)
		return nil, err
	}

	ps := &PreparedStatement{Name: name, SQL: sql}
	var cycleErr error

	for {
		msg, err := c.receiveMessage()
		if err != nil {
			return nil, err
		}

		switch msg := msg.(type) {
		case *proto.ParseComplete:
		case *proto.ParameterDescription:
			ps.ParameterOIDs = make([]codec.OID, len(msg.ParameterOIDs))
			for i, oid := range msg.ParameterOIDs {
				ps.ParameterOIDs[i] = codec.OID(oid)
			}
		case *proto.RowDescription:
			ps.Fields = copyFields(msg.Fields)
		case *proto.NoData:
		case *proto.ErrorResponse:
			cycleErr = errorResponseToPgError(msg)
		case *proto.ReadyForQuery:
			if cycleErr != nil {
				return nil, cycleErr
			}
			c.preparedStatements[name] = ps
			return ps, nil
		}
	}
}

// ExecPrepared executes a prepared statement with the given arguments over
// the extended query protocol, decoding rows through the connection's type
// map. All parameters and results use the binary format.
//
// The argument count is checked against the statement's description before
// anything is sent, so a mismatch leaves the connection untouched.
func (c *Conn) ExecPrepared(ctx context.Context, name string, args ...interface{}) (*Result, error) {
	v, err := c.ExecPreparedReader(ctx, name, &valuesReader{m: c.codecMap}, args...)
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// ExecPreparedReader is ExecPrepared with a caller-supplied RowReader. The
// returned value is whatever reader.Complete produced.
func (c *Conn) ExecPreparedReader(ctx context.Context, name string, reader RowReader, args ...interface{}) (interface{}, error) {
	ps, present := c.preparedStatements[name]
	if !present {
		return nil, &StatementNameError{Name: name, msg: "is not prepared"}
	}

	if len(args) != len(ps.ParameterOIDs) {
		return nil, &ParameterCountMismatchError{StatementName: name, Expected: len(ps.ParameterOIDs), Actual: len(args)}
	}

	params, err := c.encodeParams(ps.ParameterOIDs, args)
	if err != nil {
		return nil, err
	}

	endExchange, err := c.beginExchange(ctx)
	if err != nil {
		return nil, err
	}
	defer endExchange()

	if c.shouldLog(LogLevelDebug) {
		c.log(ctx, LogLevelDebug, "exec prepared", map[string]interface{}{"name": name, "args": logQueryArgs(args)})
	}

	err = c.frontend.SendFlush(
		&proto.Bind{
			PreparedStatement:    name,
			ParameterFormatCodes: []int16{proto.BinaryFormat},
			Parameters:           params,
			ResultFormatCodes:    []int16{proto.BinaryFormat},
		},
		&proto.Execute{},
		&proto.Sync{},
	)
	if err != nil {
		c.die(err)
		return nil, err
	}

	// Bind requested binary results, so the description's per-field formats
	// (typically text) do not apply to the rows that follow.
	fields := copyFields(ps.Fields)
	for i := range fields {
		fields[i].Format = proto.BinaryFormat
	}
	if err := reader.Describe(fields); err != nil {
		return nil, err
	}

	var (
		result   interface{}
		cycleErr error
	)

	for {
		msg, err := c.receiveMessage()
		if err != nil {
			return nil, err
		}

		if cycleErr != nil {
			if _, ok := msg.(*proto.ReadyForQuery); ok {
				return nil, cycleErr
			}
			continue
		}

		switch msg := msg.(type) {
		case *proto.BindComplete:
		case *proto.DataRow:
			if err := reader.Row(msg.Values); err != nil {
				cycleErr = err
			}
		case *proto.CommandComplete:
			result, err = reader.Complete(CommandTag(msg.CommandTag))
			if err != nil {
				cycleErr = err
			}
		case *proto.EmptyQueryResponse:
			result, err = reader.Complete("")
			if err != nil {
				cycleErr = err
			}
		case *proto.CopyInResponse:
			// Refusing the copy raises a server error which surfaces after
			// the drain. Use CopyFrom for COPY statements.
			if err := c.frontend.SendFlush(&proto.CopyFail{Message: "COPY is not supported by this method"}); err != nil {
				c.die(err)
				return nil, err
			}
		case *proto.CopyOutResponse:
			cycleErr = fmt.Errorf("COPY TO STDOUT is not supported by this method")
		case *proto.ErrorResponse:
			cycleErr = errorResponseToPgError(msg)
		case *proto.ReadyForQuery:
			return result, nil
		}
	}
}

// Deallocate releases a prepared statement on the server. The local record is
// removed up front so the name is reusable even if the server side fails.
func (c *Conn) Deallocate(ctx context.Context, name string) error {
	delete(c.preparedStatements, name)

	endExchange, err := c.beginExchange(ctx)
	if err != nil {
		return err
	}
	defer endExchange()

	err = c.frontend.SendFlush(
		&proto.Close{ObjectType: 'S', Name: name},
		&proto.Sync{},
	)
	if err != nil {
		c.die(err)
		return err
	}

	var cycleErr error
	for {
		msg, err := c.receiveMessage()
		if err != nil {
			return err
		}

		switch msg := msg.(type) {
		case *proto.CloseComplete:
		case *proto.ErrorResponse:
			cycleErr = errorResponseToPgError(msg)
		case *proto.ReadyForQuery:
			return cycleErr
		}
	}
}

// encodeParams converts arguments to binary wire values, one per declared
// parameter OID. A nil argument becomes SQL NULL.
func (c *Conn) encodeParams(oids []codec.OID, args []interface{}) ([][]byte, error) {
	params := make([][]byte, len(args))
	for i, arg := range args {
		if arg == nil {
			continue
		}

		buf, err := c.codecMap.EncodeValue(oids[i], nil, arg)
		if err != nil {
			return nil, err
		}
		// EncodeValue produces a length-prefixed value; Bind writes its own
		// length, so strip the prefix.
		params[i] = buf[4:]
	}
	return params, nil
}
