package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger interface for tracker components
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// Options configures the zerolog-backed logger
type Options struct {
	Level    string    // debug, info, warn, error
	Format   string    // json or console
	FilePath string    // optional rotating log file
	Output   io.Writer // defaults to os.Stderr

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultOptions returns info-level JSON logging on stderr
func DefaultOptions() Options {
	return Options{
		Level:      "info",
		Format:     "json",
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 30,
	}
}

// ZeroLogger adapts zerolog to the Logger interface
type ZeroLogger struct {
	zl   zerolog.Logger
	file *lumberjack.Logger
}

// NewLogger builds a logger from opts. When FilePath is set, output is
// duplicated into a size-rotated file.
func NewLogger(opts Options) (*ZeroLogger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	switch strings.ToLower(opts.Format) {
	case "", "json":
	case "console":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	l := &ZeroLogger{}
	if opts.FilePath != "" {
		l.file = &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		// The file always gets JSON, whatever the terminal format
		out = zerolog.MultiLevelWriter(out, l.file)
	}

	l.zl = zerolog.New(out).Level(level).With().Timestamp().Logger()
	return l, nil
}

// NewDefaultLogger creates a logger with DefaultOptions
func NewDefaultLogger() Logger {
	l, err := NewLogger(DefaultOptions())
	if err != nil {
		return NewNop()
	}
	return l
}

// FromZerolog wraps an existing zerolog logger
func FromZerolog(zl zerolog.Logger) *ZeroLogger {
	return &ZeroLogger{zl: zl}
}

// NewNop returns a logger that discards everything
func NewNop() *ZeroLogger {
	return &ZeroLogger{zl: zerolog.Nop()}
}

// ParseLevel maps a level name onto zerolog; empty means info
func ParseLevel(level string) (zerolog.Level, error) {
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

// Zerolog exposes the underlying logger
func (l *ZeroLogger) Zerolog() zerolog.Logger {
	return l.zl
}

// With returns a child logger carrying the given fields on every line
func (l *ZeroLogger) With(fields ...interface{}) *ZeroLogger {
	return &ZeroLogger{zl: l.zl.With().Fields(fieldsToMap(fields)).Logger(), file: l.file}
}

// Close releases the rotating file, if any
func (l *ZeroLogger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *ZeroLogger) Debug(msg string, fields ...interface{}) {
	l.emit(l.zl.Debug(), msg, fields)
}

func (l *ZeroLogger) Info(msg string, fields ...interface{}) {
	l.emit(l.zl.Info(), msg, fields)
}

func (l *ZeroLogger) Warn(msg string, fields ...interface{}) {
	l.emit(l.zl.Warn(), msg, fields)
}

func (l *ZeroLogger) Error(msg string, fields ...interface{}) {
	l.emit(l.zl.Error(), msg, fields)
}

func (l *ZeroLogger) emit(ev *zerolog.Event, msg string, fields []interface{}) {
	if ev == nil {
		return
	}
	if len(fields) > 0 {
		ev = ev.Fields(fieldsToMap(fields))
	}
	ev.Msg(msg)
}

// fieldsToMap converts the variadic fields slice to a map
// Expected format: key1, value1, key2, value2, ...
func fieldsToMap(fields []interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(fields)/2+1)

	for i := 0; i < len(fields); i += 2 {
		if i+1 < len(fields) {
			if key, ok := fields[i].(string); ok {
				result[key] = fields[i+1]
			} else {
				result[fmt.Sprintf("field_%d", i/2)] = fields[i]
				result[fmt.Sprintf("field_%d_value", i/2)] = fields[i+1]
			}
		} else {
			// Odd number of fields, keep the dangling value
			result[fmt.Sprintf("field_%d", i/2)] = fields[i]
		}
	}

	return result
}

// ClassifiedError is the view of a tracker error the helpers below need,
// declared here so logging does not import the errors package.
type ClassifiedError interface {
	Error() string
	GetCode() string
	IsRetryable() bool
	GetContext() map[string]string
	GetTimestamp() time.Time
}

// LogError logs a failed operation with its classification
func LogError(logger Logger, err error, operation string, context map[string]interface{}) {
	if logger == nil {
		logger = NewDefaultLogger()
	}

	var fields []interface{}
	var msg string
	if classified, ok := asClassified(err); ok {
		fields = []interface{}{
			"operation", operation,
			"error_code", classified.GetCode(),
			"retryable", classified.IsRetryable(),
			"timestamp", classified.GetTimestamp(),
		}
		for k, v := range classified.GetContext() {
			fields = append(fields, k, v)
		}
		msg = fmt.Sprintf("Operation failed: %s", err.Error())
	} else {
		fields = []interface{}{
			"operation", operation,
			"error_type", fmt.Sprintf("%T", err),
		}
		msg = fmt.Sprintf("Unexpected error: %v", err)
	}

	for k, v := range context {
		fields = append(fields, k, v)
	}

	logger.Error(msg, fields...)
}

// asClassified walks the Unwrap chain looking for a ClassifiedError
func asClassified(err error) (ClassifiedError, bool) {
	for err != nil {
		if c, ok := err.(ClassifiedError); ok {
			return c, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

// LogOperation logs a completed operation for monitoring
func LogOperation(logger Logger, operation string, duration time.Duration, context map[string]interface{}) {
	if logger == nil {
		logger = NewDefaultLogger()
	}

	fields := []interface{}{
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
	}
	for k, v := range context {
		fields = append(fields, k, v)
	}

	logger.Debug(fmt.Sprintf("Operation completed: %s", operation), fields...)
}
