// Package logger defines the logging interface used across go-vxi11 so that
// applications can plug in the logging framework they already use.
//
// Two backends are included:
//
//   - NewSlog: log/slog with a JSON handler, or a colored console handler
//     (github.com/phsym/console-slog) when the ENV environment variable is "development".
//   - NewZerolog: github.com/rs/zerolog.
//
// Log Levels:
//
//   - DebugLevel:  Per-fragment and link lifecycle details, disabled by default.
//   - InfoLevel:  General informational messages, e.g. retried queries.
//   - WarnLevel:  Conditions worth attention, e.g. a numeric query that returned nothing usable.
//   - ErrorLevel:  Errors reported by an instrument or the transport.
//   - FatalLevel:  Critical errors that cause program termination.
package logger

// LogLevel indicates the logging severity level.
type LogLevel = int8

const (
	// DebugLevel logs are typically voluminous, and are usually disabled in production.
	DebugLevel LogLevel = iota - 1
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual
	// human review.
	WarnLevel
	// ErrorLevel logs are high-priority. If an application is running smoothly,
	// it shouldn't generate any error-level logs.
	ErrorLevel
	// FatalLevel logs a message, then calls os.Exit(1).
	FatalLevel
)

// Logger defines a common interface for logging with key-value pairs.
type Logger interface {
	// Debug logs a message at DebugLevel.
	Debug(msg string, keysAndValues ...any)
	// Info logs a message at InfoLevel.
	Info(msg string, keysAndValues ...any)
	// Warn logs a message at WarnLevel.
	Warn(msg string, keysAndValues ...any)
	// Error logs a message at ErrorLevel.
	Error(msg string, keysAndValues ...any)
	// Fatal logs a message at FatalLevel, then calls os.Exit(1).
	Fatal(msg string, keysAndValues ...any)
	// With creates a child logger and adds structured context to it.
	// Key-values added to the child don't affect the parent, and vice versa.
	With(keyValues ...any) Logger
	// Level returns the minimum enabled level for this logger.
	Level() LogLevel
	// SetLevel sets the minimum enabled level for this logger.
	SetLevel(level LogLevel)
}
