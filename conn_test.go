package pgwire_test

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgmock"
	"github.com/jackc/pgproto3/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgkit/pgwire"
)

// startMockServer starts a scripted backend on a loopback socket and returns a
// config pointing at it. The server result arrives on the returned channel,
// which is closed when the script finishes.
func startMockServer(t *testing.T, script *pgmock.Script) (*pgwire.Config, <-chan error) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	serverErrChan := make(chan error, 1)
	go func() {
		defer close(serverErrChan)

		conn, err := ln.Accept()
		if err != nil {
			serverErrChan <- err
			return
		}
		defer conn.Close()

		conn.SetDeadline(time.Now().Add(5 * time.Second))

		backend := pgproto3.NewBackend(pgproto3.NewChunkReader(conn), conn)
		if err := script.Run(backend); err != nil {
			serverErrChan <- err
			return
		}

		// Hold the socket open until the client disconnects.
		io.Copy(io.Discard, conn)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	config := &pgwire.Config{
		Host:     "127.0.0.1",
		Port:     uint16(addr.Port),
		User:     "jack",
		Password: "secret",
	}
	return config, serverErrChan
}

func assertServerDone(t *testing.T, serverErrChan <-chan error) {
	t.Helper()

	select {
	case err := <-serverErrChan:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("mock server did not finish")
	}
}

// closeSteps matches the tail of every clean session: a Terminate message.
// The server holds the socket open until the client disconnects.
func closeSteps() []pgmock.Step {
	return []pgmock.Step{
		pgmock.ExpectMessage(&pgproto3.Terminate{}),
	}
}

func TestConnectStartup(t *testing.T) {
	t.Parallel()

	script := &pgmock.Script{
		Steps: []pgmock.Step{
			pgmock.ExpectAnyMessage(&pgproto3.StartupMessage{ProtocolVersion: pgproto3.ProtocolVersionNumber, Parameters: map[string]string{}}),
			pgmock.SendMessage(&pgproto3.AuthenticationOk{}),
			pgmock.SendMessage(&pgproto3.ParameterStatus{Name: "server_version", Value: "14.2 (Debian 14.2-1.pgdg110+1)"}),
			pgmock.SendMessage(&pgproto3.ParameterStatus{Name: "client_encoding", Value: "UTF8"}),
			pgmock.SendMessage(&pgproto3.NoticeResponse{Severity: "NOTICE", Code: "01000", Message: "database was shut down at 2026-08-30"}),
			pgmock.SendMessage(&pgproto3.BackendKeyData{ProcessID: 42, SecretKey: 99}),
			pgmock.SendMessage(&pgproto3.ReadyForQuery{TxStatus: 'I'}),
		},
	}
	script.Steps = append(script.Steps, closeSteps()...)

	config, serverErrChan := startMockServer(t, script)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := pgwire.ConnectConfig(ctx, config)
	require.NoError(t, err)

	assert.True(t, conn.IsAlive())
	assert.EqualValues(t, 42, conn.PID())
	assert.EqualValues(t, 'I', conn.TxStatus())
	assert.Equal(t, "14.2 (Debian 14.2-1.pgdg110+1)", conn.ParameterStatus("server_version"))
	assert.Equal(t, "UTF8", conn.ParameterStatus("client_encoding"))

	version, err := conn.ServerVersion()
	require.NoError(t, err)
	assert.EqualValues(t, 14, version.Major())
	assert.EqualValues(t, 2, version.Minor())

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.False(t, conn.IsAlive())

	assertServerDone(t, serverErrChan)
}

func TestConnectCleartextPasswordAuth(t *testing.T) {
	t.Parallel()

	script := &pgmock.Script{
		Steps: []pgmock.Step{
			pgmock.ExpectAnyMessage(&pgproto3.StartupMessage{ProtocolVersion: pgproto3.ProtocolVersionNumber, Parameters: map[string]string{}}),
			pgmock.SendMessage(&pgproto3.AuthenticationCleartextPassword{}),
			pgmock.ExpectMessage(&pgproto3.PasswordMessage{Password: "secret"}),
			pgmock.SendMessage(&pgproto3.AuthenticationOk{}),
			pgmock.SendMessage(&pgproto3.BackendKeyData{ProcessID: 1, SecretKey: 1}),
			pgmock.SendMessage(&pgproto3.ReadyForQuery{TxStatus: 'I'}),
		},
	}
	script.Steps = append(script.Steps, closeSteps()...)

	config, serverErrChan := startMockServer(t, script)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := pgwire.ConnectConfig(ctx, config)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	assertServerDone(t, serverErrChan)
}

func TestConnectMD5PasswordAuth(t *testing.T) {
	t.Parallel()

	script := &pgmock.Script{
		Steps: []pgmock.Step{
			pgmock.ExpectAnyMessage(&pgproto3.StartupMessage{ProtocolVersion: pgproto3.ProtocolVersionNumber, Parameters: map[string]string{}}),
			pgmock.SendMessage(&pgproto3.AuthenticationMD5Password{Salt: [4]byte{1, 2, 3, 4}}),
			// md5(md5("secretjack") + salt) for user jack, password secret.
			pgmock.ExpectMessage(&pgproto3.PasswordMessage{Password: "md56478b3003505cc2b7c3cf5b2e47288ef"}),
			pgmock.SendMessage(&pgproto3.AuthenticationOk{}),
			pgmock.SendMessage(&pgproto3.BackendKeyData{ProcessID: 1, SecretKey: 1}),
			pgmock.SendMessage(&pgproto3.ReadyForQuery{TxStatus: 'I'}),
		},
	}
	script.Steps = append(script.Steps, closeSteps()...)

	config, serverErrChan := startMockServer(t, script)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := pgwire.ConnectConfig(ctx, config)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	assertServerDone(t, serverErrChan)
}

func TestConnectAuthFailure(t *testing.T) {
	t.Parallel()

	script := &pgmock.Script{
		Steps: []pgmock.Step{
			pgmock.ExpectAnyMessage(&pgproto3.StartupMessage{ProtocolVersion: pgproto3.ProtocolVersionNumber, Parameters: map[string]string{}}),
			pgmock.SendMessage(&pgproto3.ErrorResponse{Severity: "FATAL", Code: pgerrcode.InvalidPassword, Message: `password authentication failed for user "jack"`}),
		},
	}

	config, serverErrChan := startMockServer(t, script)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := pgwire.ConnectConfig(ctx, config)
	require.Error(t, err)
	require.Nil(t, conn)

	var pgErr *pgwire.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, pgerrcode.InvalidPassword, pgErr.Code)
	assert.Equal(t, "FATAL", pgErr.Severity)

	assertServerDone(t, serverErrChan)
}

func TestConnectTLSRefused(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	serverErrChan := make(chan error, 1)
	go func() {
		defer close(serverErrChan)

		conn, err := ln.Accept()
		if err != nil {
			serverErrChan <- err
			return
		}
		defer conn.Close()

		conn.SetDeadline(time.Now().Add(5 * time.Second))

		sslRequest := make([]byte, 8)
		if _, err := io.ReadFull(conn, sslRequest); err != nil {
			serverErrChan <- err
			return
		}
		if _, err := conn.Write([]byte{'N'}); err != nil {
			serverErrChan <- err
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	config := &pgwire.Config{
		Host:      "127.0.0.1",
		Port:      uint16(addr.Port),
		User:      "jack",
		TLSConfig: &tls.Config{InsecureSkipVerify: true},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = pgwire.ConnectConfig(ctx, config)
	require.ErrorIs(t, err, pgwire.ErrTLSRefused)

	assertServerDone(t, serverErrChan)
}

func TestCancelRequest(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	script := &pgmock.Script{
		Steps: []pgmock.Step{
			pgmock.ExpectAnyMessage(&pgproto3.StartupMessage{ProtocolVersion: pgproto3.ProtocolVersionNumber, Parameters: map[string]string{}}),
			pgmock.SendMessage(&pgproto3.AuthenticationOk{}),
			pgmock.SendMessage(&pgproto3.BackendKeyData{ProcessID: 123, SecretKey: 456}),
			pgmock.SendMessage(&pgproto3.ReadyForQuery{TxStatus: 'I'}),
		},
	}
	script.Steps = append(script.Steps, closeSteps()...)

	serverErrChan := make(chan error, 2)
	cancelFrameChan := make(chan []byte, 1)
	go func() {
		defer close(serverErrChan)

		sessionConn, err := ln.Accept()
		if err != nil {
			serverErrChan <- err
			return
		}
		defer sessionConn.Close()
		sessionConn.SetDeadline(time.Now().Add(5 * time.Second))

		sessionDone := make(chan struct{})
		go func() {
			defer close(sessionDone)
			backend := pgproto3.NewBackend(pgproto3.NewChunkReader(sessionConn), sessionConn)
			if err := script.Run(backend); err != nil {
				serverErrChan <- err
			}
		}()

		cancelConn, err := ln.Accept()
		if err != nil {
			serverErrChan <- err
			return
		}
		cancelConn.SetDeadline(time.Now().Add(5 * time.Second))

		frame := make([]byte, 16)
		if _, err := io.ReadFull(cancelConn, frame); err != nil {
			serverErrChan <- err
		} else {
			cancelFrameChan <- frame
		}
		cancelConn.Close()

		<-sessionDone
	}()

	addr := ln.Addr().(*net.TCPAddr)
	config := &pgwire.Config{Host: "127.0.0.1", Port: uint16(addr.Port), User: "jack"}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := pgwire.ConnectConfig(ctx, config)
	require.NoError(t, err)

	require.NoError(t, conn.CancelRequest(ctx))
	require.NoError(t, conn.Close())

	select {
	case frame := <-cancelFrameChan:
		assert.EqualValues(t, 16, binary.BigEndian.Uint32(frame[0:4]))
		assert.EqualValues(t, 80877102, binary.BigEndian.Uint32(frame[4:8]))
		assert.EqualValues(t, 123, binary.BigEndian.Uint32(frame[8:12]))
		assert.EqualValues(t, 456, binary.BigEndian.Uint32(frame[12:16]))
	case <-time.After(5 * time.Second):
		t.Fatal("cancel request never arrived")
	}

	for err := range serverErrChan {
		assert.NoError(t, err)
	}
}
