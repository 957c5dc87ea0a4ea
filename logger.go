package gacha

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// DefaultLogger implements Logger on top of zerolog
type DefaultLogger struct {
	zl zerolog.Logger
}

// NewDefaultLogger creates a console logger writing to stderr at the given level
func NewDefaultLogger(level string) *DefaultLogger {
	return NewDefaultLoggerWithWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}, level)
}

// NewDefaultLoggerWithWriter creates a logger writing to w
func NewDefaultLoggerWithWriter(w io.Writer, level string) *DefaultLogger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return &DefaultLogger{
		zl: zerolog.New(w).Level(lvl).With().Timestamp().Str("component", "lifegacha").Logger(),
	}
}

// NewZerologLogger adapts an existing zerolog logger
func NewZerologLogger(zl zerolog.Logger) *DefaultLogger {
	return &DefaultLogger{zl: zl}
}

// Info logs an info message
func (l *DefaultLogger) Info(msg string, args ...any) {
	l.zl.Info().Msg(format(msg, args))
}

// Error logs an error message
func (l *DefaultLogger) Error(msg string, args ...any) {
	l.zl.Error().Msg(format(msg, args))
}

// Debug logs a debug message
func (l *DefaultLogger) Debug(msg string, args ...any) {
	l.zl.Debug().Msg(format(msg, args))
}

func format(msg string, args []any) string {
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

// SilentLogger implements Logger interface but does not output any logs
// This is useful for testing environments where log output is not desired
type SilentLogger struct{}

// NewSilentLogger creates a new silent logger instance
func NewSilentLogger() *SilentLogger {
	return &SilentLogger{}
}

// Info does nothing (silent)
func (l *SilentLogger) Info(msg string, args ...any) {}

// Error does nothing (silent)
func (l *SilentLogger) Error(msg string, args ...any) {}

// Debug does nothing (silent)
func (l *SilentLogger) Debug(msg string, args ...any) {}

// orSilent returns a usable logger
func orSilent(l Logger) Logger {
	if l == nil {
		return NewSilentLogger()
	}
	return l
}
