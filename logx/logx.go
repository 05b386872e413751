// Package logx is protocore's leveled logger, grounded on the teacher
// repo's x/fmtx host/mcu split: a host build delegates straight to the
// standard library, while a constrained-device build (see fmt_mcu.go)
// avoids pulling in fmt's reflection-heavy formatter. Filtering happens at
// the call site via an integer level compare, per spec.md Design Notes'
// guidance to replace macro-based logging tiers with a checked enum.
package logx

// Level is a logging severity, ordered least to most severe.
type Level int8

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "?"
	}
}

// Sink receives already-formatted log lines. Implementations must not block;
// a cooperative run-loop thread can't afford to stall on log output.
type Sink interface {
	Write(level Level, name, msg string)
}

// Logger is a named, leveled logger. The zero value is not usable; use New.
type Logger struct {
	name string
	min  Level
	sink Sink
}

func New(name string, min Level, sink Sink) *Logger {
	if sink == nil {
		sink = discard{}
	}
	return &Logger{name: name, min: min, sink: sink}
}

func (l *Logger) enabled(lvl Level) bool { return l != nil && lvl >= l.min }

func (l *Logger) Trace(msg string) { l.log(LevelTrace, msg) }
func (l *Logger) Debug(msg string) { l.log(LevelDebug, msg) }
func (l *Logger) Info(msg string)  { l.log(LevelInfo, msg) }
func (l *Logger) Warn(msg string)  { l.log(LevelWarn, msg) }
func (l *Logger) Error(msg string) { l.log(LevelError, msg) }

func (l *Logger) Tracef(format string, a ...any) { l.logf(LevelTrace, format, a...) }
func (l *Logger) Debugf(format string, a ...any) { l.logf(LevelDebug, format, a...) }
func (l *Logger) Infof(format string, a ...any)  { l.logf(LevelInfo, format, a...) }
func (l *Logger) Warnf(format string, a ...any)  { l.logf(LevelWarn, format, a...) }
func (l *Logger) Errorf(format string, a ...any) { l.logf(LevelError, format, a...) }

func (l *Logger) log(lvl Level, msg string) {
	if !l.enabled(lvl) {
		return
	}
	l.sink.Write(lvl, l.name, msg)
}

func (l *Logger) logf(lvl Level, format string, a ...any) {
	if !l.enabled(lvl) {
		return
	}
	l.sink.Write(lvl, l.name, Sprintf(format, a...))
}

type discard struct{}

func (discard) Write(Level, string, string) {}
