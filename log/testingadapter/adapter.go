// Package testingadapter routes connection logging into a test or benchmark
// log via the pgwire.Logger interface.
package testingadapter

import (
	"context"
	"fmt"

	"github.com/pgkit/pgwire"
)

// TestingLogger is the one testing.TB method this adapter calls, so a *testing.T
// or *testing.B can be passed directly.
type TestingLogger interface {
	Log(args ...interface{})
}

type Logger struct {
	l TestingLogger
}

func NewLogger(l TestingLogger) *Logger {
	return &Logger{l: l}
}

func (l *Logger) Log(ctx context.Context, level pgwire.LogLevel, msg string, data map[string]interface{}) {
	logArgs := make([]interface{}, 0, 2+len(data))
	logArgs = append(logArgs, level, msg)
	for k, v := range data {
		logArgs = append(logArgs, fmt.Sprintf("%s=%v", k, v))
	}
	l.l.Log(logArgs...)
}
