package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a thin structured logging facade over zerolog so that call
// sites work with message + key/value pairs rather than the fluent API.
type Logger struct {
	zl zerolog.Logger
}

var defaultLogger *Logger

func init() {
	defaultLogger = newLogger("info", "console", os.Stderr)
}

func newLogger(level, format string, writer io.Writer) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = writer
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC822}
	}

	return &Logger{
		zl: zerolog.New(out).Level(lvl).With().Timestamp().Logger(),
	}
}

// Configure sets up the logger with the given settings
// Call this early in your main() function
func Configure(level, format string, writer io.Writer) {
	if writer == nil {
		writer = os.Stderr
	}

	defaultLogger = newLogger(level, format, writer)
}

// GetLogger returns the configured logger instance
// Use this when passing to libraries
func GetLogger() *Logger {
	return defaultLogger
}

func (l *Logger) log(e *zerolog.Event, msg string, keysAndValues []any) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, keysAndValues[i+1])
	}
	e.Msg(msg)
}

func (l *Logger) Trace(msg string, keysAndValues ...any) {
	l.log(l.zl.Trace(), msg, keysAndValues)
}

func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.log(l.zl.Debug(), msg, keysAndValues)
}

func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.log(l.zl.Info(), msg, keysAndValues)
}

func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.log(l.zl.Warn(), msg, keysAndValues)
}

func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.log(l.zl.Error(), msg, keysAndValues)
}

func (l *Logger) Fatal(msg string, keysAndValues ...any) {
	l.log(l.zl.Fatal(), msg, keysAndValues)
}

func (l *Logger) With(key string, value any) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

func (l *Logger) WithError(err error) *Logger {
	return &Logger{zl: l.zl.With().Err(err).Logger()}
}

func (l *Logger) WithGroup(group string) *Logger {
	return &Logger{zl: l.zl.With().Str("group", group).Logger()}
}

// Package-level convenience functions
func Trace(msg string, keysAndValues ...any) {
	defaultLogger.Trace(msg, keysAndValues...)
}

func Debug(msg string, keysAndValues ...any) {
	defaultLogger.Debug(msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...any) {
	defaultLogger.Info(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...any) {
	defaultLogger.Warn(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...any) {
	defaultLogger.Error(msg, keysAndValues...)
}

func Fatal(msg string, keysAndValues ...any) {
	defaultLogger.Fatal(msg, keysAndValues...)
}

func With(key string, value any) *Logger {
	return defaultLogger.With(key, value)
}

func WithError(err error) *Logger {
	return defaultLogger.WithError(err)
}

func WithGroup(group string) *Logger {
	return defaultLogger.WithGroup(group)
}
