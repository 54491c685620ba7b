package log

import (
	"fmt"

	"go.uber.org/zap"
)

// zapLogger adapts a *zap.Logger to the Logger interface, mapping the
// mediator's level scale onto zap's, the way
// reclaimprotocol-reclaim-tee/shared.Logger wraps a *zap.Logger with
// service-specific fields instead of reimplementing leveled output.
type zapLogger struct {
	level int
	base  *zap.Logger
}

// NewZap wraps base, logging only events at or below level. base is
// typically built with zap.NewProduction() or zap.NewDevelopment().
func NewZap(base *zap.Logger, level int) Logger {
	return &zapLogger{level: level, base: base.WithOptions(zap.AddCallerSkip(1))}
}

// NewDefault builds a development-mode zap logger at LevelInfo,
// suitable for cmd/tlsecho and ad-hoc debugging.
func NewDefault() Logger {
	base, err := zap.NewDevelopment()
	if err != nil {
		return Nop
	}
	return NewZap(base, LevelInfo)
}

func (l *zapLogger) Log(level int, format string, values ...interface{}) {
	if level > l.level {
		return
	}
	msg := format
	if len(values) > 0 {
		msg = fmt.Sprintf(format, values...)
	}
	switch level {
	case LevelError:
		l.base.Error(msg)
	case LevelInfo:
		l.base.Info(msg)
	case LevelDebug:
		l.base.Debug(msg)
	case LevelTrace:
		l.base.Debug(msg, zap.Bool("trace", true))
	}
}
