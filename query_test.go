package pgwire_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgmock"
	"github.com/jackc/pgproto3/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgkit/pgwire"
)

func int4Field(name string) pgproto3.FieldDescription {
	return pgproto3.FieldDescription{
		Name:         []byte(name),
		DataTypeOID:  23,
		DataTypeSize: 4,
		TypeModifier: -1,
		Format:       1,
	}
}

func textField(name string) pgproto3.FieldDescription {
	return pgproto3.FieldDescription{
		Name:         []byte(name),
		DataTypeOID:  25,
		DataTypeSize: -1,
		TypeModifier: -1,
	}
}

func TestQuerySelectRows(t *testing.T) {
	t.Parallel()

	script := &pgmock.Script{Steps: pgmock.AcceptUnauthenticatedConnRequestSteps()}
	script.Steps = append(script.Steps,
		pgmock.ExpectMessage(&pgproto3.Query{String: "select n, s from t"}),
		pgmock.SendMessage(&pgproto3.RowDescription{Fields: []pgproto3.FieldDescription{int4Field("n"), textField("s")}}),
		pgmock.SendMessage(&pgproto3.DataRow{Values: [][]byte{{0, 0, 0, 42}, []byte("towel")}}),
		pgmock.SendMessage(&pgproto3.DataRow{Values: [][]byte{{0, 0, 0, 7}, nil}}),
		pgmock.SendMessage(&pgproto3.CommandComplete{CommandTag: []byte("SELECT 2")}),
		pgmock.SendMessage(&pgproto3.ReadyForQuery{TxStatus: 'I'}),
	)
	script.Steps = append(script.Steps, closeSteps()...)

	config, serverErrChan := startMockServer(t, script)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := pgwire.ConnectConfig(ctx, config)
	require.NoError(t, err)
	defer conn.Close()

	results, err := conn.Query(ctx, "select n, s from t")
	require.NoError(t, err)
	require.Len(t, results, 1)

	result := results[0]
	require.Len(t, result.Fields, 2)
	assert.Equal(t, "n", result.Fields[0].Name)
	assert.Equal(t, "s", result.Fields[1].Name)

	require.Len(t, result.Rows, 2)
	assert.Equal(t, int32(42), result.Rows[0][0])
	assert.Equal(t, "towel", result.Rows[0][1])
	assert.Equal(t, int32(7), result.Rows[1][0])
	assert.Nil(t, result.Rows[1][1])

	assert.EqualValues(t, "SELECT 2", result.CommandTag)
	assert.EqualValues(t, 2, result.CommandTag.RowsAffected())

	require.NoError(t, conn.Close())
	assertServerDone(t, serverErrChan)
}

func TestQueryMultipleStatements(t *testing.T) {
	t.Parallel()

	script := &pgmock.Script{Steps: pgmock.AcceptUnauthenticatedConnRequestSteps()}
	script.Steps = append(script.Steps,
		pgmock.ExpectMessage(&pgproto3.Query{String: "select 1; select 'two'"}),
		pgmock.SendMessage(&pgproto3.RowDescription{Fields: []pgproto3.FieldDescription{int4Field("a")}}),
		pgmock.SendMessage(&pgproto3.DataRow{Values: [][]byte{{0, 0, 0, 1}}}),
		pgmock.SendMessage(&pgproto3.CommandComplete{CommandTag: []byte("SELECT 1")}),
		pgmock.SendMessage(&pgproto3.RowDescription{Fields: []pgproto3.FieldDescription{textField("b")}}),
		pgmock.SendMessage(&pgproto3.DataRow{Values: [][]byte{[]byte("two")}}),
		pgmock.SendMessage(&pgproto3.CommandComplete{CommandTag: []byte("SELECT 1")}),
		pgmock.SendMessage(&pgproto3.ReadyForQuery{TxStatus: 'I'}),
	)
	script.Steps = append(script.Steps, closeSteps()...)

	config, serverErrChan := startMockServer(t, script)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := pgwire.ConnectConfig(ctx, config)
	require.NoError(t, err)
	defer conn.Close()

	results, err := conn.Query(ctx, "select 1; select 'two'")
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.Len(t, results[0].Rows, 1)
	assert.Equal(t, int32(1), results[0].Rows[0][0])
	require.Len(t, results[1].Rows, 1)
	assert.Equal(t, "two", results[1].Rows[0][0])

	require.NoError(t, conn.Close())
	assertServerDone(t, serverErrChan)
}

func TestQueryEmpty(t *testing.T) {
	t.Parallel()

	script := &pgmock.Script{Steps: pgmock.AcceptUnauthenticatedConnRequestSteps()}
	script.Steps = append(script.Steps,
		pgmock.ExpectMessage(&pgproto3.Query{String: ";"}),
		pgmock.SendMessage(&pgproto3.EmptyQueryResponse{}),
		pgmock.SendMessage(&pgproto3.ReadyForQuery{TxStatus: 'I'}),
	)
	script.Steps = append(script.Steps, closeSteps()...)

	config, serverErrChan := startMockServer(t, script)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := pgwire.ConnectConfig(ctx, config)
	require.NoError(t, err)
	defer conn.Close()

	results, err := conn.Query(ctx, ";")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Rows)
	assert.EqualValues(t, "", results[0].CommandTag)

	require.NoError(t, conn.Close())
	assertServerDone(t, serverErrChan)
}

func TestQueryErrorThenRecover(t *testing.T) {
	t.Parallel()

	script := &pgmock.Script{Steps: pgmock.AcceptUnauthenticatedConnRequestSteps()}
	script.Steps = append(script.Steps,
		pgmock.ExpectMessage(&pgproto3.Query{String: "select 1/0"}),
		pgmock.SendMessage(&pgproto3.ErrorResponse{Severity: "ERROR", Code: pgerrcode.DivisionByZero, Message: "division by zero"}),
		pgmock.SendMessage(&pgproto3.ReadyForQuery{TxStatus: 'I'}),
		pgmock.ExpectMessage(&pgproto3.Query{String: "select 2"}),
		pgmock.SendMessage(&pgproto3.RowDescription{Fields: []pgproto3.FieldDescription{int4Field("a")}}),
		pgmock.SendMessage(&pgproto3.DataRow{Values: [][]byte{{0, 0, 0, 2}}}),
		pgmock.SendMessage(&pgproto3.CommandComplete{CommandTag: []byte("SELECT 1")}),
		pgmock.SendMessage(&pgproto3.ReadyForQuery{TxStatus: 'I'}),
	)
	script.Steps = append(script.Steps, closeSteps()...)

	config, serverErrChan := startMockServer(t, script)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := pgwire.ConnectConfig(ctx, config)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Query(ctx, "select 1/0")
	require.Error(t, err)

	var pgErr *pgwire.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, pgerrcode.DivisionByZero, pgErr.Code)
	assert.Equal(t, pgwire.KindDataException, pgErr.Kind())

	// The failed cycle was drained to ReadyForQuery, so the connection is
	// still usable.
	require.True(t, conn.IsAlive())
	results, err := conn.Query(ctx, "select 2")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int32(2), results[0].Rows[0][0])

	require.NoError(t, conn.Close())
	assertServerDone(t, serverErrChan)
}

func TestQueryMaps(t *testing.T) {
	t.Parallel()

	script := &pgmock.Script{Steps: pgmock.AcceptUnauthenticatedConnRequestSteps()}
	script.Steps = append(script.Steps,
		pgmock.ExpectMessage(&pgproto3.Query{String: "select n, s from t"}),
		pgmock.SendMessage(&pgproto3.RowDescription{Fields: []pgproto3.FieldDescription{int4Field("n"), textField("s")}}),
		pgmock.SendMessage(&pgproto3.DataRow{Values: [][]byte{{0, 0, 0, 42}, []byte("towel")}}),
		pgmock.SendMessage(&pgproto3.CommandComplete{CommandTag: []byte("SELECT 1")}),
		pgmock.SendMessage(&pgproto3.ReadyForQuery{TxStatus: 'I'}),
	)
	script.Steps = append(script.Steps, closeSteps()...)

	config, serverErrChan := startMockServer(t, script)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := pgwire.ConnectConfig(ctx, config)
	require.NoError(t, err)
	defer conn.Close()

	results, err := conn.QueryMaps(ctx, "select n, s from t")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0].Rows, 1)
	assert.Equal(t, map[string]interface{}{"n": int32(42), "s": "towel"}, results[0].Rows[0])

	require.NoError(t, conn.Close())
	assertServerDone(t, serverErrChan)
}

func TestExec(t *testing.T) {
	t.Parallel()

	script := &pgmock.Script{Steps: pgmock.AcceptUnauthenticatedConnRequestSteps()}
	script.Steps = append(script.Steps,
		pgmock.ExpectMessage(&pgproto3.Query{String: "insert into t values (1), (2), (3)"}),
		pgmock.SendMessage(&pgproto3.CommandComplete{CommandTag: []byte("INSERT 0 3")}),
		pgmock.SendMessage(&pgproto3.ReadyForQuery{TxStatus: 'I'}),
	)
	script.Steps = append(script.Steps, closeSteps()...)

	config, serverErrChan := startMockServer(t, script)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := pgwire.ConnectConfig(ctx, config)
	require.NoError(t, err)
	defer conn.Close()

	tag, err := conn.Exec(ctx, "insert into t values (1), (2), (3)")
	require.NoError(t, err)
	assert.EqualValues(t, "INSERT 0 3", tag)
	assert.EqualValues(t, 3, tag.RowsAffected())

	require.NoError(t, conn.Close())
	assertServerDone(t, serverErrChan)
}

func TestQueryNoticeAndNotification(t *testing.T) {
	t.Parallel()

	script := &pgmock.Script{Steps: pgmock.AcceptUnauthenticatedConnRequestSteps()}
	script.Steps = append(script.Steps,
		pgmock.ExpectMessage(&pgproto3.Query{String: "listen events; select 1"}),
		pgmock.SendMessage(&pgproto3.NoticeResponse{Severity: "NOTICE", Code: "00000", Message: "be advised"}),
		pgmock.SendMessage(&pgproto3.CommandComplete{CommandTag: []byte("LISTEN")}),
		pgmock.SendMessage(&pgproto3.NotificationResponse{PID: 77, Channel: "events", Payload: "hello"}),
		pgmock.SendMessage(&pgproto3.RowDescription{Fields: []pgproto3.FieldDescription{int4Field("a")}}),
		pgmock.SendMessage(&pgproto3.DataRow{Values: [][]byte{{0, 0, 0, 1}}}),
		pgmock.SendMessage(&pgproto3.CommandComplete{CommandTag: []byte("SELECT 1")}),
		pgmock.SendMessage(&pgproto3.ReadyForQuery{TxStatus: 'I'}),
	)
	script.Steps = append(script.Steps, closeSteps()...)

	config, serverErrChan := startMockServer(t, script)

	var notices []*pgwire.Notice
	var notifications []*pgwire.Notification
	config.OnNotice = func(_ *pgwire.Conn, n *pgwire.Notice) { notices = append(notices, n) }
	config.OnNotification = func(_ *pgwire.Conn, n *pgwire.Notification) { notifications = append(notifications, n) }

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := pgwire.ConnectConfig(ctx, config)
	require.NoError(t, err)
	defer conn.Close()

	results, err := conn.Query(ctx, "listen events; select 1")
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.Len(t, notices, 1)
	assert.Equal(t, "be advised", notices[0].Message)

	require.Len(t, notifications, 1)
	assert.EqualValues(t, 77, notifications[0].PID)
	assert.Equal(t, "events", notifications[0].Channel)
	assert.Equal(t, "hello", notifications[0].Payload)

	require.NoError(t, conn.Close())
	assertServerDone(t, serverErrChan)
}
