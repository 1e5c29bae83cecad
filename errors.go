package pgwire

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"

	"github.com/pgkit/pgwire/proto"
)

// ErrorKind is a coarse classification of a server error, keyed off the
// SQLSTATE class of the error code. Every server error maps to exactly one
// kind; codes from classes not listed here map to KindOther.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindConnectionException
	KindDataException
	KindIntegrityConstraintViolation
	KindInvalidTransactionState
	KindInvalidAuthorizationSpecification
	KindInvalidCatalogName
	KindSyntaxErrorOrAccessRuleViolation
	KindInsufficientResources
	KindObjectNotInPrerequisiteState
	KindOperatorIntervention
	KindTransactionRollback
	KindFeatureNotSupported
	KindSystemError
	KindInternalError
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnectionException:
		return "connection exception"
	case KindDataException:
		return "data exception"
	case KindIntegrityConstraintViolation:
		return "integrity constraint violation"
	case KindInvalidTransactionState:
		return "invalid transaction state"
	case KindInvalidAuthorizationSpecification:
		return "invalid authorization specification"
	case KindInvalidCatalogName:
		return "invalid catalog name"
	case KindSyntaxErrorOrAccessRuleViolation:
		return "syntax error or access rule violation"
	case KindInsufficientResources:
		return "insufficient resources"
	case KindObjectNotInPrerequisiteState:
		return "object not in prerequisite state"
	case KindOperatorIntervention:
		return "operator intervention"
	case KindTransactionRollback:
		return "transaction rollback"
	case KindFeatureNotSupported:
		return "feature not supported"
	case KindSystemError:
		return "system error"
	case KindInternalError:
		return "internal error"
	default:
		return "other"
	}
}

// PgError represents an error reported by the PostgreSQL server. See
// http://www.postgresql.org/docs/current/static/protocol-error-fields.html for
// detailed field description.
type PgError struct {
	Severity         string
	Code             string
	Message          string
	Detail           string
	Hint             string
	Position         int32
	InternalPosition int32
	InternalQuery    string
	Where            string
	SchemaName       string
	TableName        string
	ColumnName       string
	DataTypeName     string
	ConstraintName   string
	File             string
	Line             int32
	Routine          string
}

func (pe *PgError) Error() string {
	return pe.Severity + ": " + pe.Message + " (SQLSTATE " + pe.Code + ")"
}

// SQLState returns the SQLState of the error.
func (pe *PgError) SQLState() string {
	return pe.Code
}

// Kind classifies the error by its SQLSTATE class.
func (pe *PgError) Kind() ErrorKind {
	switch {
	case pgerrcode.IsConnectionException(pe.Code):
		return KindConnectionException
	case pgerrcode.IsDataException(pe.Code):
		return KindDataException
	case pgerrcode.IsIntegrityConstraintViolation(pe.Code):
		return KindIntegrityConstraintViolation
	case pgerrcode.IsInvalidTransactionState(pe.Code):
		return KindInvalidTransactionState
	case pgerrcode.IsInvalidAuthorizationSpecification(pe.Code):
		return KindInvalidAuthorizationSpecification
	case pgerrcode.IsInvalidCatalogName(pe.Code):
		return KindInvalidCatalogName
	case pgerrcode.IsSyntaxErrororAccessRuleViolation(pe.Code):
		return KindSyntaxErrorOrAccessRuleViolation
	case pgerrcode.IsInsufficientResources(pe.Code):
		return KindInsufficientResources
	case pgerrcode.IsObjectNotInPrerequisiteState(pe.Code):
		return KindObjectNotInPrerequisiteState
	case pgerrcode.IsOperatorIntervention(pe.Code):
		return KindOperatorIntervention
	case pgerrcode.IsTransactionRollback(pe.Code):
		return KindTransactionRollback
	case pgerrcode.IsFeatureNotSupported(pe.Code):
		return KindFeatureNotSupported
	case pgerrcode.IsSystemError(pe.Code):
		return KindSystemError
	case pgerrcode.IsInternalError(pe.Code):
		return KindInternalError
	default:
		return KindOther
	}
}

// IsUniqueViolation reports whether err is a server error with SQLSTATE 23505.
func IsUniqueViolation(err error) bool {
	return hasSQLState(err, pgerrcode.UniqueViolation)
}

// IsForeignKeyViolation reports whether err is a server error with SQLSTATE 23503.
func IsForeignKeyViolation(err error) bool {
	return hasSQLState(err, pgerrcode.ForeignKeyViolation)
}

// IsNotNullViolation reports whether err is a server error with SQLSTATE 23502.
func IsNotNullViolation(err error) bool {
	return hasSQLState(err, pgerrcode.NotNullViolation)
}

// IsSerializationFailure reports whether err is a server error with SQLSTATE 40001.
func IsSerializationFailure(err error) bool {
	return hasSQLState(err, pgerrcode.SerializationFailure)
}

func hasSQLState(err error, code string) bool {
	var pgErr *PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// errorResponseToPgError copies the wire-level field pairs into a PgError.
func errorResponseToPgError(msg *proto.ErrorResponse) *PgError {
	return &PgError{
		Severity:         msg.Severity,
		Code:             msg.Code,
		Message:          msg.Message,
		Detail:           msg.Detail,
		Hint:             msg.Hint,
		Position:         msg.Position,
		InternalPosition: msg.InternalPosition,
		InternalQuery:    msg.InternalQuery,
		Where:            msg.Where,
		SchemaName:       msg.SchemaName,
		TableName:        msg.TableName,
		ColumnName:       msg.ColumnName,
		DataTypeName:     msg.DataTypeName,
		ConstraintName:   msg.ConstraintName,
		File:             msg.File,
		Line:             msg.Line,
		Routine:          msg.Routine,
	}
}

// Notice represents a notice response message reported by the PostgreSQL
// server. Be aware that this is distinct from LISTEN/NOTIFY notification.
type Notice PgError

func noticeResponseToNotice(msg *proto.NoticeResponse) *Notice {
	pgerr := errorResponseToPgError((*proto.ErrorResponse)(msg))
	return (*Notice)(pgerr)
}

// Notification is a message received from the PostgreSQL LISTEN/NOTIFY system.
type Notification struct {
	PID     uint32 // backend pid that sent the notification
	Channel string
	Payload string
}

// ErrConnBusy occurs when the connection is busy (for example, in the middle
// of reading query results or streaming a COPY) and another action is
// attempted.
var ErrConnBusy = errors.New("conn is busy")

// ErrTLSRefused occurs when the connection attempt requires TLS and the
// PostgreSQL server refuses to use TLS.
var ErrTLSRefused = errors.New("server refused TLS connection")

// ParameterCountMismatchError occurs when a prepared statement is executed
// with a different number of arguments than it was described with. Nothing is
// sent to the server in that case.
type ParameterCountMismatchError struct {
	StatementName string
	Expected      int
	Actual        int
}

func (e *ParameterCountMismatchError) Error() string {
	return fmt.Sprintf("prepared statement %q requires %d parameters, %d given", e.StatementName, e.Expected, e.Actual)
}

// StatementNameError occurs when a statement name is prepared twice without an
// intervening Deallocate, or an unknown name is executed or deallocated.
type StatementNameError struct {
	Name string
	msg  string
}

func (e *StatementNameError) Error() string {
	return fmt.Sprintf("statement %q %s", e.Name, e.msg)
}

type deadConnError struct {
	cause error
}

func (e *deadConnError) Error() string {
	return fmt.Sprintf("conn is dead: %s", e.cause.Error())
}

func (e *deadConnError) Unwrap() error {
	return e.cause
}

type connectError struct {
	config *Config
	msg    string
	err    error
}

func (e *connectError) Error() string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "failed to connect to `host=%s user=%s database=%s`: %s", e.config.Host, e.config.User, e.config.Database, e.msg)
	if e.err != nil {
		fmt.Fprintf(sb, " (%s)", e.err.Error())
	}
	return sb.String()
}

func (e *connectError) Unwrap() error {
	return e.err
}

type parseConfigError struct {
	connString string
	msg        string
	err        error
}

func (e *parseConfigError) Error() string {
	connString := redactPW(e.connString)
	if e.err == nil {
		return fmt.Sprintf("cannot parse `%s`: %s", connString, e.msg)
	}
	return fmt.Sprintf("cannot parse `%s`: %s (%s)", connString, e.msg, e.err.Error())
}

func (e *parseConfigError) Unwrap() error {
	return e.err
}
