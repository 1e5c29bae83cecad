package pgwire

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/pgkit/pgwire/codec"
	"github.com/pgkit/pgwire/proto"
)

const (
	connStatusUninitialized = iota
	connStatusConnecting
	connStatusClosed
	connStatusIdle
	connStatusBusy
)

// Conn is a low-level PostgreSQL connection handle. It is not safe for
// concurrent usage and allows exactly one query cycle in flight at a time.
type Conn struct {
	conn     net.Conn
	frontend *proto.Frontend
	config   *Config

	status       byte
	causeOfDeath error

	pid               uint32
	secretKey         uint32
	parameterStatuses map[string]string
	txStatus          byte

	preparedStatements map[string]*PreparedStatement

	codecMap *codec.Map

	logger   Logger
	logLevel LogLevel
}

// Connect establishes a connection to a PostgreSQL server using the settings
// parsed from connString. See ParseConfig for the accepted formats.
func Connect(ctx context.Context, connString string) (*Conn, error) {
	config, err := ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	return ConnectConfig(ctx, config)
}

// ConnectConfig establishes a connection to a PostgreSQL server using config.
// On every failure path the underlying socket is closed.
func ConnectConfig(ctx context.Context, config *Config) (*Conn, error) {
	c := &Conn{
		config:             config,
		status:             connStatusConnecting,
		parameterStatuses:  make(map[string]string),
		preparedStatements: make(map[string]*PreparedStatement),
		codecMap:           codec.NewMap(),
		logger:             config.Logger,
		logLevel:           config.LogLevel,
	}

	dialFunc := config.DialFunc
	if dialFunc == nil {
		dialFunc = makeDefaultDialer().DialContext
	}

	network, address := NetworkAddress(config.Host, config.Port)
	var err error
	c.conn, err = dialFunc(ctx, network, address)
	if err != nil {
		return nil, &connectError{config: config, msg: "dial error", err: err}
	}

	if config.TLSConfig != nil {
		if err := c.startTLS(config.TLSConfig); err != nil {
			c.conn.Close()
			return nil, &connectError{config: config, msg: "tls error", err: err}
		}
	}

	c.frontend = proto.NewFrontend(c.conn, c.conn)

	startupMsg := &proto.StartupMessage{
		ProtocolVersion: proto.ProtocolVersionNumber,
		Parameters:      make(map[string]string, len(config.RuntimeParams)+2),
	}
	for k, v := range config.RuntimeParams {
		startupMsg.Parameters[k] = v
	}
	startupMsg.Parameters["user"] = config.User
	if config.Database != "" {
		startupMsg.Parameters["database"] = config.Database
	}

	if err := c.frontend.SendFlush(startupMsg); err != nil {
		c.conn.Close()
		return nil, &connectError{config: config, msg: "failed to write startup message", err: err}
	}

	for {
		msg, err := c.receiveMessage()
		if err != nil {
			c.conn.Close()
			var pgErr *PgError
			if errors.As(err, &pgErr) {
				return nil, pgErr
			}
			return nil, &connectError{config: config, msg: "failed to receive message", err: err}
		}

		switch msg := msg.(type) {
		case *proto.Authentication:
			if err := c.rxAuthentication(msg); err != nil {
				c.conn.Close()
				return nil, &connectError{config: config, msg: "failed to authenticate", err: err}
			}
		case *proto.BackendKeyData:
			c.pid = msg.ProcessID
			c.secretKey = msg.SecretKey
		case *proto.ParameterStatus, *proto.NoticeResponse:
			// already handled by receiveMessage
		case *proto.ReadyForQuery:
			c.status = connStatusIdle
			if c.shouldLog(LogLevelInfo) {
				c.log(ctx, LogLevelInfo, "connection established", map[string]interface{}{"host": config.Host})
			}
			return c, nil
		default:
			c.conn.Close()
			return nil, &connectError{config: config, msg: fmt.Sprintf("unexpected message during startup: %T", msg)}
		}
	}
}

// startTLS performs the SSLRequest handshake and wraps the socket in TLS.
// A server answering 'N' does not speak TLS on this socket.
func (c *Conn) startTLS(tlsConfig *tls.Config) error {
	buf := (&proto.SSLRequest{}).Encode(nil)
	if _, err := c.conn.Write(buf); err != nil {
		return err
	}

	response := make([]byte, 1)
	if _, err := io.ReadFull(c.conn, response); err != nil {
		return err
	}

	if response[0] != 'S' {
		return ErrTLSRefused
	}

	c.conn = tls.Client(c.conn, tlsConfig)
	return nil
}

func (c *Conn) rxAuthentication(msg *proto.Authentication) error {
	switch msg.Type {
	case proto.AuthTypeOk:
		return nil
	case proto.AuthTypeCleartextPassword:
		return c.rxAuthCleartext()
	case proto.AuthTypeMD5Password:
		return c.rxAuthMD5(msg.Salt)
	case proto.AuthTypeSASL:
		return c.scramAuth(msg.SASLAuthMechanisms)
	default:
		return fmt.Errorf("unsupported authentication type: %d", msg.Type)
	}
}

// receiveMessage receives one backend message and handles the messages that
// can arrive in any cycle: ParameterStatus, NoticeResponse,
// NotificationResponse, ReadyForQuery transaction status, and fatal errors.
// Stream errors kill the connection.
func (c *Conn) receiveMessage() (proto.BackendMessage, error) {
	msg, err := c.frontend.Receive()
	if err != nil {
		c.die(err)
		return nil, err
	}

	switch msg := msg.(type) {
	case *proto.ReadyForQuery:
		c.txStatus = msg.TxStatus
	case *proto.ParameterStatus:
		c.parameterStatuses[msg.Name] = msg.Value
	case *proto.NoticeResponse:
		if c.config.OnNotice != nil {
			c.config.OnNotice(c, noticeResponseToNotice(msg))
		}
	case *proto.NotificationResponse:
		if c.config.OnNotification != nil {
			c.config.OnNotification(c, &Notification{PID: msg.PID, Channel: msg.Channel, Payload: msg.Payload})
		}
	case *proto.ErrorResponse:
		if msg.Severity == "FATAL" {
			pgErr := errorResponseToPgError(msg)
			c.die(pgErr)
			return nil, pgErr
		}
	}

	return msg, nil
}

// Close cleanly closes the connection. It sends Terminate on a best-effort
// basis and always closes the socket. It is safe to call multiple times.
func (c *Conn) Close() error {
	if c.status == connStatusClosed {
		return nil
	}
	c.status = connStatusClosed

	// Ignore the write error: the socket is closing regardless and the
	// server treats an abrupt close the same as a missing Terminate.
	_ = c.frontend.SendFlush(&proto.Terminate{})
	return c.conn.Close()
}

func (c *Conn) die(err error) {
	if c.status == connStatusClosed {
		return
	}
	c.status = connStatusClosed
	c.causeOfDeath = err
	c.conn.Close()
}

// IsAlive reports whether the connection is believed usable. A true result
// can still be stale: only traffic proves liveness.
func (c *Conn) IsAlive() bool {
	return c.status >= connStatusIdle
}

// CauseOfDeath returns the error that killed the connection, or nil if the
// connection is alive or was closed normally.
func (c *Conn) CauseOfDeath() error {
	return c.causeOfDeath
}

func (c *Conn) lock() error {
	switch c.status {
	case connStatusBusy:
		return ErrConnBusy
	case connStatusClosed, connStatusUninitialized, connStatusConnecting:
		if c.causeOfDeath != nil {
			return &deadConnError{cause: c.causeOfDeath}
		}
		return errors.New("conn is closed")
	}
	c.status = connStatusBusy
	return nil
}

func (c *Conn) unlock() {
	if c.status == connStatusBusy {
		c.status = connStatusIdle
	}
}

// ParameterStatus returns the value of a parameter reported by the server
// (e.g. server_version_num). Returns an empty string if the parameter was not
// reported.
func (c *Conn) ParameterStatus(key string) string {
	return c.parameterStatuses[key]
}

// TxStatus returns the last reported transaction status byte: 'I' idle,
// 'T' in transaction, 'E' in failed transaction.
func (c *Conn) TxStatus() byte {
	return c.txStatus
}

// PID returns the backend process id reported during startup, or 0 if the
// server did not send BackendKeyData.
func (c *Conn) PID() uint32 {
	return c.pid
}

// CodecMap returns the type map used to decode results and encode parameters.
// Deriving from it and calling SetCodecMap scopes codec overrides to this
// connection.
func (c *Conn) CodecMap() *codec.Map {
	return c.codecMap
}

// SetCodecMap replaces the connection's type map.
func (c *Conn) SetCodecMap(m *codec.Map) {
	c.codecMap = m
}

// ServerVersion parses the server_version parameter reported during startup.
// Vendor suffixes such as "14.5 (Debian 14.5-1.pgdg110+1)" are stripped.
func (c *Conn) ServerVersion() (*semver.Version, error) {
	raw := c.parameterStatuses["server_version"]
	if raw == "" {
		return nil, errors.New("server did not report server_version")
	}

	if idx := strings.IndexByte(raw, ' '); idx >= 0 {
		raw = raw[:idx]
	}

	v, err := semver.NewVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("cannot parse server_version %q: %w", raw, err)
	}
	return v, nil
}

// CancelRequest sends a cancel request to the server over a fresh connection.
// It is best-effort: a successful return means the request was delivered, not
// that any query was canceled.
func (c *Conn) CancelRequest(ctx context.Context) error {
	if c.pid == 0 {
		return errors.New("no backend key data available")
	}

	dialFunc := c.config.DialFunc
	if dialFunc == nil {
		dialFunc = makeDefaultDialer().DialContext
	}

	network, address := NetworkAddress(c.config.Host, c.config.Port)
	cancelConn, err := dialFunc(ctx, network, address)
	if err != nil {
		return err
	}
	defer cancelConn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		cancelConn.SetDeadline(deadline)
	} else {
		cancelConn.SetDeadline(time.Now().Add(10 * time.Second))
	}

	buf := (&proto.CancelRequest{ProcessID: c.pid, SecretKey: c.secretKey}).Encode(nil)
	if _, err := cancelConn.Write(buf); err != nil {
		return err
	}

	// The server closes the connection without replying.
	_, err = cancelConn.Read(make([]byte, 1))
	if err != io.EOF {
		return err
	}
	return nil
}
