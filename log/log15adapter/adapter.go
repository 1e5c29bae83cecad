// Package log15adapter adapts a github.com/inconshreveable/log15 Logger to
// the pgwire.Logger interface. The logger is consumed through the Log15Logger
// interface, so this package does not itself depend on log15.
package log15adapter

import (
	"context"

	"github.com/pgkit/pgwire"
)

// Log15Logger is the subset of the log15.Logger methods this adapter calls.
type Log15Logger interface {
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
}

type Logger struct {
	l Log15Logger
}

func NewLogger(l Log15Logger) *Logger {
	return &Logger{l: l}
}

func (l *Logger) Log(ctx context.Context, level pgwire.LogLevel, msg string, data map[string]interface{}) {
	logArgs := make([]interface{}, 0, len(data)*2)
	for k, v := range data {
		logArgs = append(logArgs, k, v)
	}

	switch level {
	case pgwire.LogLevelTrace:
		l.l.Debug(msg, append(logArgs, "PGWIRE_LOG_LEVEL", level)...)
	case pgwire.LogLevelDebug:
		l.l.Debug(msg, logArgs...)
	case pgwire.LogLevelInfo:
		l.l.Info(msg, logArgs...)
	case pgwire.LogLevelWarn:
		l.l.Warn(msg, logArgs...)
	case pgwire.LogLevelError:
		l.l.Error(msg, logArgs...)
	default:
		l.l.Error(msg, append(logArgs, "INVALID_PGWIRE_LOG_LEVEL", level)...)
	}
}
