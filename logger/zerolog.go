package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// ZerologLogger adapts a zerolog.Logger to Logger.
type ZerologLogger struct {
	logger zerolog.Logger
}

var _ Logger = (*ZerologLogger)(nil)

// NewZerolog creates a zerolog backed logger writing JSON lines to w.
func NewZerolog(w io.Writer, level LogLevel) Logger {
	zl := zerolog.New(w).With().Timestamp().Logger().Level(toZerologLevel(level))
	return &ZerologLogger{logger: zl}
}

// NewZerologConsole creates a zerolog backed logger with human readable output on stdout.
func NewZerologConsole(level LogLevel) Logger {
	return NewZerolog(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05.000"}, level)
}

// FromZerolog wraps an existing zerolog.Logger.
func FromZerolog(zl zerolog.Logger) Logger {
	return &ZerologLogger{logger: zl}
}

func (l *ZerologLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(toFields(keysAndValues)).Msg(msg)
}

func (l *ZerologLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info().Fields(toFields(keysAndValues)).Msg(msg)
}

func (l *ZerologLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Warn().Fields(toFields(keysAndValues)).Msg(msg)
}

func (l *ZerologLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error().Fields(toFields(keysAndValues)).Msg(msg)
}

// Fatal logs at fatal level; zerolog exits the process after writing.
func (l *ZerologLogger) Fatal(msg string, keysAndValues ...any) {
	l.logger.Fatal().Fields(toFields(keysAndValues)).Msg(msg)
}

func (l *ZerologLogger) With(keyValues ...any) Logger {
	return &ZerologLogger{logger: l.logger.With().Fields(toFields(keyValues)).Logger()}
}

func (l *ZerologLogger) Level() LogLevel {
	switch l.logger.GetLevel() {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		return DebugLevel
	case zerolog.InfoLevel:
		return InfoLevel
	case zerolog.WarnLevel:
		return WarnLevel
	case zerolog.FatalLevel, zerolog.PanicLevel:
		return FatalLevel
	default:
		return ErrorLevel
	}
}

func (l *ZerologLogger) SetLevel(level LogLevel) {
	l.logger = l.logger.Level(toZerologLevel(level))
}

func toZerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case DebugLevel:
		return zerolog.DebugLevel
	case InfoLevel:
		return zerolog.InfoLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case FatalLevel:
		return zerolog.FatalLevel
	default:
		return zerolog.ErrorLevel
	}
}

// toFields converts alternating key/value pairs to a zerolog field map.
// A dangling key is kept with a nil value; non-string keys are formatted with %v.
func toFields(keysAndValues []any) map[string]any {
	if len(keysAndValues) == 0 {
		return nil
	}

	fields := make(map[string]any, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keysAndValues[i])
		}

		var val any
		if i+1 < len(keysAndValues) {
			val = keysAndValues[i+1]
		}
		fields[key] = val
	}

	return fields
}
