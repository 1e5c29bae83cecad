package pgwire

import (
	"context"
	"fmt"
	"time"

	"github.com/pgkit/pgwire/proto"
)

// beginExchange locks the connection for one query cycle and applies any
// context deadline to the socket. The returned func releases both.
func (c *Conn) beginExchange(ctx context.Context) (func(), error) {
	if err := c.lock(); err != nil {
		return nil, err
	}

	clearDeadline := c.applyDeadline(ctx)
	return func() {
		clearDeadline()
		c.unlock()
	}, nil
}

// applyDeadline puts the context deadline on the socket and returns a func
// that lifts it again. A context without a deadline leaves the socket alone.
func (c *Conn) applyDeadline(ctx context.Context) func() {
	deadline, ok := ctx.Deadline()
	if !ok {
		return func() {}
	}

	c.conn.SetDeadline(deadline)
	return func() {
		if c.status != connStatusClosed {
			c.conn.SetDeadline(time.Time{})
		}
	}
}

// QueryReader executes sql via the simple query protocol. sql may contain
// multiple statements separated by semicolons; nextReader is called once per
// statement that produces a result cycle and the values its readers return
// from Complete are collected in statement order.
//
// A server error aborts the remainder of the query string. QueryReader still
// consumes messages until ReadyForQuery so the connection stays usable, then
// returns the statements completed so far along with the error.
func (c *Conn) QueryReader(ctx context.Context, sql string, nextReader func() RowReader) ([]interface{}, error) {
	endExchange, err := c.beginExchange(ctx)
	if err != nil {
		return nil, err
	}
	defer endExchange()

	if c.shouldLog(LogLevelDebug) {
		c.log(ctx, LogLevelDebug, "query", map[string]interface{}{"sql": sql})
	}

	if err := c.frontend.SendFlush(&proto.Query{String: sql}); err != nil {
		c.die(err)
		return nil, err
	}

	var (
		results  []interface{}
		cur      RowReader
		cycleErr error
	)

	for {
		msg, err := c.receiveMessage()
		if err != nil {
			return results, err
		}

		if cycleErr != nil {
			// Drain to ReadyForQuery, ignoring the aborted remainder.
			if _, ok := msg.(*proto.ReadyForQuery); ok {
				return results, cycleErr
			}
			continue
		}

		switch msg := msg.(type) {
		case *proto.RowDescription:
			cur = nextReader()
			if err := cur.Describe(copyFields(msg.Fields)); err != nil {
				cycleErr = err
			}
		case *proto.DataRow:
			if cur == nil {
				cur = nextReader()
			}
			if err := cur.Row(msg.Values); err != nil {
				cycleErr = err
			}
		case *proto.CommandComplete:
			if cur == nil {
				cur = nextReader()
			}
			v, err := cur.Complete(CommandTag(msg.CommandTag))
			cur = nil
			if err != nil {
				cycleErr = err
				continue
			}
			results = append(results, v)
		case *proto.EmptyQueryResponse:
			v, err := nextReader().Complete("")
			if err != nil {
				cycleErr = err
				continue
			}
			results = append(results, v)
		case *proto.CopyInResponse:
			// The simple executor does not stream data. Refusing the copy
			// raises a server error which surfaces after the drain.
			if err := c.frontend.SendFlush(&proto.CopyFail{Message: "COPY is not supported by this method"}); err != nil {
				c.die(err)
				return results, err
			}
		case *proto.CopyOutResponse:
			cycleErr = fmt.Errorf("COPY TO STDOUT is not supported by this method")
		case *proto.ErrorResponse:
			cycleErr = errorResponseToPgError(msg)
		case *proto.ReadyForQuery:
			return results, nil
		}
	}
}

// Query executes sql via the simple query protocol and returns one Result per
// statement, with every column decoded through the connection's type map.
func (c *Conn) Query(ctx context.Context, sql string) ([]*Result, error) {
	collected, err := c.QueryReader(ctx, sql, func() RowReader {
		return &valuesReader{m: c.codecMap}
	})

	results := make([]*Result, len(collected))
	for i, v := range collected {
		results[i] = v.(*Result)
	}
	return results, err
}

// QueryMaps executes sql via the simple query protocol and returns rows keyed
// by column name.
func (c *Conn) QueryMaps(ctx context.Context, sql string) ([]*MapResult, error) {
	collected, err := c.QueryReader(ctx, sql, func() RowReader {
		return &mapsReader{m: c.codecMap}
	})

	results := make([]*MapResult, len(collected))
	for i, v := range collected {
		results[i] = v.(*MapResult)
	}
	return results, err
}

// Exec executes sql via the simple query protocol, discards any rows, and
// returns the last statement's command tag.
func (c *Conn) Exec(ctx context.Context, sql string) (CommandTag, error) {
	collected, err := c.QueryReader(ctx, sql, func() RowReader {
		return discardReader{}
	})

	var tag CommandTag
	if len(collected) > 0 {
		tag = collected[len(collected)-1].(CommandTag)
	}
	return tag, err
}
