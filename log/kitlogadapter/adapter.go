// Package kitlogadapter adapts a github.com/go-kit/log Logger to the
// pgwire.Logger interface, mapping levels through go-kit's level package.
package kitlogadapter

import (
	"context"

	"github.com/go-kit/log"
	kitlevel "github.com/go-kit/log/level"

	"github.com/pgkit/pgwire"
)

type Logger struct {
	l log.Logger
}

func NewLogger(l log.Logger) *Logger {
	return &Logger{l: l}
}

func (l *Logger) Log(ctx context.Context, level pgwire.LogLevel, msg string, data map[string]interface{}) {
	logger := l.l
	for k, v := range data {
		logger = log.With(logger, k, v)
	}

	switch level {
	case pgwire.LogLevelTrace:
		logger.Log("PGWIRE_LOG_LEVEL", level, "msg", msg)
	case pgwire.LogLevelDebug:
		kitlevel.Debug(logger).Log("msg", msg)
	case pgwire.LogLevelInfo:
		kitlevel.Info(logger).Log("msg", msg)
	case pgwire.LogLevelWarn:
		kitlevel.Warn(logger).Log("msg", msg)
	case pgwire.LogLevelError:
		kitlevel.Error(logger).Log("msg", msg)
	default:
		logger.Log("INVALID_PGWIRE_LOG_LEVEL", level, "error", msg)
	}
}
