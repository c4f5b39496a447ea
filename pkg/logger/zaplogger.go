package logger

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// ZapLogger adapts a sugared zap logger to the key/value style used across
// the gateway. Child loggers from With share the level of their parent.
type ZapLogger struct {
	log   *zap.SugaredLogger
	level zap.AtomicLevel
}

var current atomic.Pointer[ZapLogger]

// NewLogger builds the process logger from config and installs it as the
// global one.
func NewLogger(config zap.Config) (*ZapLogger, error) {
	built, err := config.Build(zap.AddCallerSkip(2))
	if err != nil {
		return nil, err
	}
	l := &ZapLogger{log: built.Sugar(), level: config.Level}
	current.Store(l)
	return l, nil
}

func GetLogger() *ZapLogger {
	l := current.Load()
	if l == nil {
		panic("logger not initialized")
	}
	return l
}

// With returns a logger that adds the given key/value pairs to every entry.
func (l *ZapLogger) With(values ...any) *ZapLogger {
	return &ZapLogger{log: l.log.With(values...), level: l.level}
}

func (l *ZapLogger) withCallerSkip(skip int) *ZapLogger {
	return &ZapLogger{log: l.log.WithOptions(zap.AddCallerSkip(skip)), level: l.level}
}

func (l *ZapLogger) SetLevel(level string) error {
	return l.level.UnmarshalText([]byte(level))
}

func (l *ZapLogger) Panic(message string, values ...any) {
	l.log.Panicw(message, values...)
}

func (l *ZapLogger) Fatal(err error, values ...any) {
	l.log.Fatalw(err.Error(), values...)
}

func (l *ZapLogger) Info(message string, values ...any) {
	l.log.Infow(message, values...)
}

func (l *ZapLogger) Warn(message string, values ...any) {
	l.log.Warnw(message, values...)
}

func (l *ZapLogger) Error(message string, values ...any) {
	l.log.Errorw(message, values...)
}

func (l *ZapLogger) Debug(message string, values ...any) {
	l.log.Debugw(message, values...)
}

// Printf lets fasthttp write its own messages through zap.
func (l *ZapLogger) Printf(format string, args ...interface{}) {
	l.log.Infof(format, args...)
}
