// Package logging provides the leveled logger used across every process,
// with a pluggable provider interface backed by zap instead of the
// standard log package.
package logging

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Provider is the pluggable logging backend. A custom Provider can be
// installed with SetProvider (e.g. to route logs to an err-log file,
// or to a test recorder).
type Provider interface {
	Critical(msg string, kv ...interface{})
	Error(msg string, kv ...interface{})
	Warn(msg string, kv ...interface{})
	Info(msg string, kv ...interface{})
	Debug(msg string, kv ...interface{})
	Sync() error
}

// Logger is a named, leveled handle shared by every package. The zero value
// is usable and silently discards output until enabled.
type Logger struct {
	name     string
	provider Provider
	enabled  uint32
}

// New creates a Logger with the given component name (e.g. "tci", "ab3418")
// using the default zap-backed provider.
func New(name string) *Logger {
	return &Logger{name: name, provider: defaultProvider(), enabled: 1}
}

// SetProvider overrides the backend. Passing nil disables logging.
func (l *Logger) SetProvider(p Provider) {
	if p == nil {
		atomic.StoreUint32(&l.enabled, 0)
		return
	}
	l.provider = p
}

// LogMode toggles output without discarding the configured provider.
func (l *Logger) LogMode(enable bool) {
	if enable {
		atomic.StoreUint32(&l.enabled, 1)
	} else {
		atomic.StoreUint32(&l.enabled, 0)
	}
}

func (l *Logger) on() bool { return atomic.LoadUint32(&l.enabled) == 1 }

// Critical logs a fatal-category condition.
func (l *Logger) Critical(msg string, kv ...interface{}) {
	if l.on() {
		l.provider.Critical(l.name+": "+msg, kv...)
	}
}

// Error logs a persistent I/O failure, decode error, or rejected message.
func (l *Logger) Error(msg string, kv ...interface{}) {
	if l.on() {
		l.provider.Error(l.name+": "+msg, kv...)
	}
}

// Warn logs a transient, self-healing condition (e.g. an EAGAIN retry).
func (l *Logger) Warn(msg string, kv ...interface{}) {
	if l.on() {
		l.provider.Warn(l.name+": "+msg, kv...)
	}
}

// Info logs a routine lifecycle event (startup, poll-cycle rerun, …).
func (l *Logger) Info(msg string, kv ...interface{}) {
	if l.on() {
		l.provider.Info(l.name+": "+msg, kv...)
	}
}

// Debug logs a verbose, per-tick trace.
func (l *Logger) Debug(msg string, kv ...interface{}) {
	if l.on() {
		l.provider.Debug(l.name+": "+msg, kv...)
	}
}

// Sync flushes the underlying provider; call before process exit.
func (l *Logger) Sync() error {
	if l.provider == nil {
		return nil
	}
	return l.provider.Sync()
}

type zapProvider struct {
	z *zap.SugaredLogger
}

var _ Provider = (*zapProvider)(nil)

func (p zapProvider) Critical(msg string, kv ...interface{}) { p.z.Fatalw(msg, kv...) }
func (p zapProvider) Error(msg string, kv ...interface{})    { p.z.Errorw(msg, kv...) }
func (p zapProvider) Warn(msg string, kv ...interface{})     { p.z.Warnw(msg, kv...) }
func (p zapProvider) Info(msg string, kv ...interface{})     { p.z.Infow(msg, kv...) }
func (p zapProvider) Debug(msg string, kv ...interface{})    { p.z.Debugw(msg, kv...) }
func (p zapProvider) Sync() error                            { return p.z.Sync() }

func defaultProvider() Provider {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.Lock(os.Stdout),
		zapcore.InfoLevel,
	)
	return zapProvider{z: zap.New(core).Sugar()}
}
