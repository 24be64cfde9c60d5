package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Level is the level at which a logger is configured. All messages sent
// to a level which is below the current level are filtered.
type Level uint32

// Level constants.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
	LevelOff
)

var levelStrs = [...]string{"TRC", "DBG", "INF", "WRN", "ERR", "CRT", "OFF"}

// LevelFromString returns a level based on the input string s. If the input
// can't be interpreted as a valid log level, the info level and false is
// returned.
func LevelFromString(s string) (l Level, ok bool) {
	switch strings.ToLower(s) {
	case "trace", "trc":
		return LevelTrace, true
	case "debug", "dbg":
		return LevelDebug, true
	case "info", "inf":
		return LevelInfo, true
	case "warn", "wrn":
		return LevelWarn, true
	case "error", "err":
		return LevelError, true
	case "critical", "crt":
		return LevelCritical, true
	case "off":
		return LevelOff, true
	default:
		return LevelInfo, false
	}
}

// String returns the tag of the logger used in log messages, or "OFF" if
// the level will not produce any log output.
func (l Level) String() string {
	if l >= LevelOff {
		return "OFF"
	}
	return levelStrs[l]
}

// Backend is a logging backend. Subsystems created from the backend write to
// every attached writer whose minimum level allows the message.
type Backend struct {
	mu      sync.Mutex
	writers []*backendWriter
}

type backendWriter struct {
	w        io.Writer
	minLevel Level
}

// NewBackend creates a new logger backend with no writers attached.
func NewBackend() *Backend {
	return &Backend{}
}

// AddWriter attaches w to the backend. Messages below minLevel are not
// written to it.
func (b *Backend) AddWriter(w io.Writer, minLevel Level) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writers = append(b.writers, &backendWriter{w: w, minLevel: minLevel})
}

// AddLogFile attaches a rotating log file to the backend.
func (b *Backend) AddLogFile(logFile string, minLevel Level) error {
	r, err := newRotator(logFile)
	if err != nil {
		return errors.Wrapf(err, "failed to create file rotator for %s", logFile)
	}
	b.AddWriter(r, minLevel)
	return nil
}

// Close closes every attached writer that implements io.Closer.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, writer := range b.writers {
		if closer, ok := writer.w.(io.Closer); ok && writer.w != os.Stdout && writer.w != os.Stderr {
			_ = closer.Close()
		}
	}
	b.writers = nil
}

// Logger returns a new logger for a particular subsystem that writes to the
// backend. The logger starts at the info level.
func (b *Backend) Logger(subsystemTag string) *Logger {
	return &Logger{lvl: uint32(LevelInfo), tag: subsystemTag, b: b}
}

func (b *Backend) print(level Level, tag string, msg string) {
	line := formatHeader(time.Now(), level, tag) + msg
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, writer := range b.writers {
		if level >= writer.minLevel {
			_, _ = io.WriteString(writer.w, line)
		}
	}
}

func formatHeader(t time.Time, level Level, tag string) string {
	return fmt.Sprintf("%s [%s] %s: ", t.Format("2006-01-02 15:04:05.000"), level, tag)
}

// Logger is a subsystem logger for a Backend.
type Logger struct {
	lvl uint32 // atomic
	tag string
	b   *Backend
}

// Level returns the current logging level.
func (l *Logger) Level() Level {
	return Level(atomic.LoadUint32(&l.lvl))
}

// SetLevel changes the logging level to the passed level.
func (l *Logger) SetLevel(level Level) {
	atomic.StoreUint32(&l.lvl, uint32(level))
}

// Backend returns the backend this logger writes to.
func (l *Logger) Backend() *Backend {
	return l.b
}

func (l *Logger) printf(level Level, format string, args ...interface{}) {
	if level < l.Level() {
		return
	}
	l.b.print(level, l.tag, fmt.Sprintf(format, args...))
}

func (l *Logger) print(level Level, args ...interface{}) {
	if level < l.Level() {
		return
	}
	l.b.print(level, l.tag, fmt.Sprint(args...))
}

// Tracef formats message according to format specifier, prepends the prefix
// as necessary, and writes to log with LevelTrace.
func (l *Logger) Tracef(format string, args ...interface{}) { l.printf(LevelTrace, format, args...) }

// Debugf formats message according to format specifier and writes to log with LevelDebug.
func (l *Logger) Debugf(format string, args ...interface{}) { l.printf(LevelDebug, format, args...) }

// Infof formats message according to format specifier and writes to log with LevelInfo.
func (l *Logger) Infof(format string, args ...interface{}) { l.printf(LevelInfo, format, args...) }

// Warnf formats message according to format specifier and writes to log with LevelWarn.
func (l *Logger) Warnf(format string, args ...interface{}) { l.printf(LevelWarn, format, args...) }

// Errorf formats message according to format specifier and writes to log with LevelError.
func (l *Logger) Errorf(format string, args ...interface{}) { l.printf(LevelError, format, args...) }

// Criticalf formats message according to format specifier and writes to log with LevelCritical.
func (l *Logger) Criticalf(format string, args ...interface{}) {
	l.printf(LevelCritical, format, args...)
}

// Trace formats message using the default formats for its operands and writes to log with LevelTrace.
func (l *Logger) Trace(args ...interface{}) { l.print(LevelTrace, args...) }

// Debug writes to log with LevelDebug.
func (l *Logger) Debug(args ...interface{}) { l.print(LevelDebug, args...) }

// Info writes to log with LevelInfo.
func (l *Logger) Info(args ...interface{}) { l.print(LevelInfo, args...) }

// Warn writes to log with LevelWarn.
func (l *Logger) Warn(args ...interface{}) { l.print(LevelWarn, args...) }

// Error writes to log with LevelError.
func (l *Logger) Error(args ...interface{}) { l.print(LevelError, args...) }

// Critical writes to log with LevelCritical.
func (l *Logger) Critical(args ...interface{}) { l.print(LevelCritical, args...) }
