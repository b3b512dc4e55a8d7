// Package logger provides datapub.Logger implementations backed by zerolog.
package logger

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// Logger adapts a zerolog.Logger to datapub.Logger.
type Logger struct {
	zl zerolog.Logger
}

// New wraps an existing zerolog logger.
func New(zl zerolog.Logger) *Logger {
	return &Logger{zl: zl}
}

// NewStandardLogger returns a Logger writing human readable lines to w.
// Debugf output is dropped.
func NewStandardLogger(w io.Writer) *Logger {
	return New(console(w).Level(zerolog.InfoLevel))
}

// NewVerboseLogger is like NewStandardLogger but includes Debugf output.
func NewVerboseLogger(w io.Writer) *Logger {
	return New(console(w).Level(zerolog.DebugLevel))
}

// NewJSONLogger writes one JSON object per line to w.
func NewJSONLogger(w io.Writer, verbose bool) *Logger {
	lvl := zerolog.InfoLevel
	if verbose {
		lvl = zerolog.DebugLevel
	}
	return New(zerolog.New(w).With().Timestamp().Logger().Level(lvl))
}

func console(w io.Writer) zerolog.Logger {
	cw := zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: "2006-01-02 15:04:05"}
	return zerolog.New(cw).With().Timestamp().Logger()
}

// Printf logs at info level.
func (l *Logger) Printf(format string, v ...interface{}) {
	l.zl.Info().Msg(fmt.Sprintf(format, v...))
}

// Debugf logs at debug level.
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.zl.Debug().Msg(fmt.Sprintf(format, v...))
}
