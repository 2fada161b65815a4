package log

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Level names accepted by ParseLevel.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// ZerologAdapter implements Logger using zerolog.
// Child loggers created with With share the parent's level, so SetLevel
// on any of them affects the whole tree.
type ZerologAdapter struct {
	logger zerolog.Logger
	level  *atomic.Int32
}

// NewZerologAdapter creates an adapter writing human-readable lines to stderr.
func NewZerologAdapter(level string) *ZerologAdapter {
	return NewZerologAdapterWithWriter(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}, level)
}

// NewZerologAdapterWithWriter creates an adapter over an arbitrary writer.
// Pass a plain io.Writer to get JSON lines.
func NewZerologAdapterWithWriter(w io.Writer, level string) *ZerologAdapter {
	return NewZerologAdapterWithLogger(
		zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger(),
	)
}

// NewZerologAdapterWithLogger creates an adapter wrapping an existing zerolog.Logger.
func NewZerologAdapterWithLogger(logger zerolog.Logger) *ZerologAdapter {
	lvl := &atomic.Int32{}
	lvl.Store(int32(logger.GetLevel()))
	return &ZerologAdapter{
		logger: logger.Level(zerolog.TraceLevel),
		level:  lvl,
	}
}

// ParseLevel maps a level name to a zerolog level. Unknown names yield info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn, "warning":
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug logs a debug-level message.
func (z *ZerologAdapter) Debug(msg string, fields ...Field) {
	z.emit(zerolog.DebugLevel, msg, fields)
}

// Info logs an info-level message.
func (z *ZerologAdapter) Info(msg string, fields ...Field) {
	z.emit(zerolog.InfoLevel, msg, fields)
}

// Warn logs a warning-level message.
func (z *ZerologAdapter) Warn(msg string, fields ...Field) {
	z.emit(zerolog.WarnLevel, msg, fields)
}

// Error logs an error-level message.
func (z *ZerologAdapter) Error(msg string, fields ...Field) {
	z.emit(zerolog.ErrorLevel, msg, fields)
}

// With returns a child adapter carrying fields on every entry.
func (z *ZerologAdapter) With(fields ...Field) Logger {
	ctx := z.logger.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key, f.Value)
	}
	return &ZerologAdapter{logger: ctx.Logger(), level: z.level}
}

// SetLevel changes the minimum level. Safe for concurrent use.
func (z *ZerologAdapter) SetLevel(level string) {
	z.level.Store(int32(ParseLevel(level)))
}

// Level returns the current minimum level.
func (z *ZerologAdapter) Level() zerolog.Level {
	return zerolog.Level(z.level.Load())
}

// Logger returns the underlying zerolog.Logger.
func (z *ZerologAdapter) Logger() zerolog.Logger {
	return z.logger.Level(z.Level())
}

func (z *ZerologAdapter) emit(lvl zerolog.Level, msg string, fields []Field) {
	if lvl < z.Level() {
		return
	}
	event := z.logger.WithLevel(lvl)
	for _, f := range fields {
		event = addField(event, f)
	}
	event.Msg(msg)
}

// addField adds a Field to a zerolog.Event.
func addField(event *zerolog.Event, f Field) *zerolog.Event {
	switch v := f.Value.(type) {
	case string:
		return event.Str(f.Key, v)
	case []string:
		return event.Strs(f.Key, v)
	case int:
		return event.Int(f.Key, v)
	case int64:
		return event.Int64(f.Key, v)
	case uint64:
		return event.Uint64(f.Key, v)
	case float64:
		return event.Float64(f.Key, v)
	case bool:
		return event.Bool(f.Key, v)
	case time.Duration:
		return event.Dur(f.Key, v)
	case error:
		return event.Err(v)
	default:
		return event.Interface(f.Key, v)
	}
}
