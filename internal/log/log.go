package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logger is a key/value logger bound to a set of fields. The package-level
// functions log through the default Logger.
type Logger struct {
	zl zerolog.Logger
}

var (
	std     *Logger
	stdOnce sync.Once
	stdMu   sync.RWMutex
)

// initLogger initializes the global logger to write JSON lines to stderr.
func initLogger() {
	stdOnce.Do(func() {
		std = newLogger(os.Stderr, "json")
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	})
}

func newLogger(w io.Writer, format string) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	out := w
	if strings.EqualFold(format, "console") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	}
	return &Logger{zl: zerolog.New(out).With().Timestamp().Logger()}
}

// Configure replaces the default logger. format is "json" or "console".
func Configure(w io.Writer, format string, level Level) {
	initLogger()
	if w == nil {
		w = os.Stderr
	}
	l := newLogger(w, format)
	stdMu.Lock()
	std = l
	stdMu.Unlock()
	SetLevel(level)
}

// ParseLevel maps a config string to a Level; unknown values mean INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func SetLevel(l Level) {
	initLogger()
	switch l {
	case LevelDebug:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case LevelWarn:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case LevelError:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func defaultLogger() *Logger {
	initLogger()
	stdMu.RLock()
	defer stdMu.RUnlock()
	return std
}

// With returns a child of the default logger carrying the given pairs.
func With(kv ...any) *Logger {
	return defaultLogger().With(kv...)
}

func Debug(msg string, kv ...any) { defaultLogger().Debug(msg, kv...) }

func Info(msg string, kv ...any) { defaultLogger().Info(msg, kv...) }

func Warn(msg string, kv ...any) { defaultLogger().Warn(msg, kv...) }

func Error(msg string, err error, kv ...any) { defaultLogger().Error(msg, err, kv...) }

func (l *Logger) With(kv ...any) *Logger {
	ctx := l.zl.With()
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ctx = ctx.Interface(key, kv[i+1])
	}
	return &Logger{zl: ctx.Logger()}
}

func (l *Logger) Debug(msg string, kv ...any) {
	emit(l.zl.Debug(), msg, kv...)
}

func (l *Logger) Info(msg string, kv ...any) {
	emit(l.zl.Info(), msg, kv...)
}

func (l *Logger) Warn(msg string, kv ...any) {
	emit(l.zl.Warn(), msg, kv...)
}

func (l *Logger) Error(msg string, err error, kv ...any) {
	emit(l.zl.Error().Err(err), msg, kv...)
}

func emit(ev *zerolog.Event, msg string, kv ...any) {
	if ev == nil {
		return
	}
	// Expect kv as pairs: key, value, key, value, ...
	// If odd number of args, last one is ignored.
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		switch v := kv[i+1].(type) {
		case string:
			ev = ev.Str(key, v)
		case int:
			ev = ev.Int(key, v)
		case bool:
			ev = ev.Bool(key, v)
		case time.Duration:
			ev = ev.Dur(key, v)
		case time.Time:
			ev = ev.Time(key, v)
		case error:
			ev = ev.AnErr(key, v)
		case fmt.Stringer:
			ev = ev.Stringer(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}
