// Package zerologadapter adapts a github.com/rs/zerolog Logger to the
// pgwire.Logger interface.
package zerologadapter

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/pgkit/pgwire"
)

type Logger struct {
	logger zerolog.Logger
}

// NewLogger wraps logger, tagging every event with a module field.
func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{
		logger: logger.With().Str("module", "pgwire").Logger(),
	}
}

func (pl *Logger) Log(ctx context.Context, level pgwire.LogLevel, msg string, data map[string]interface{}) {
	var zlevel zerolog.Level
	switch level {
	case pgwire.LogLevelNone:
		zlevel = zerolog.NoLevel
	case pgwire.LogLevelError:
		zlevel = zerolog.ErrorLevel
	case pgwire.LogLevelWarn:
		zlevel = zerolog.WarnLevel
	case pgwire.LogLevelInfo:
		zlevel = zerolog.InfoLevel
	case pgwire.LogLevelDebug:
		zlevel = zerolog.DebugLevel
	default:
		zlevel = zerolog.DebugLevel
	}

	pglog := pl.logger.With().Fields(data).Logger()
	pglog.WithLevel(zlevel).Msg(msg)
}
