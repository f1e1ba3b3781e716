package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
)

// BaseLogger is the Logger returned by NewLogger. Derived loggers share the
// formatter and outputs and carry their own attributes on the handler.
type BaseLogger struct {
	level     Level
	formatter Formatter
	outputs   []Output
	h         *handler
}

func (l *BaseLogger) derive(fields []Field) *BaseLogger {
	if len(fields) == 0 {
		return l
	}
	nl := *l
	nl.h = l.h.withAttrs(toAttrs(fields))
	nl.h.sink = &nl
	return &nl
}

// emit builds the record with the caller of the public method as PC.
func (l *BaseLogger) emit(level Level, msg string, attrs []slog.Attr) {
	if level < l.level {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), slogLevel(level), msg, pcs[0])
	r.AddAttrs(attrs...)
	_ = l.h.Handle(context.Background(), r)
	if level == FatalLevel {
		os.Exit(1)
	}
}

func (l *BaseLogger) Debug(msg string, fields ...Field) { l.emit(DebugLevel, msg, toAttrs(fields)) }
func (l *BaseLogger) Info(msg string, fields ...Field)  { l.emit(InfoLevel, msg, toAttrs(fields)) }
func (l *BaseLogger) Warn(msg string, fields ...Field)  { l.emit(WarnLevel, msg, toAttrs(fields)) }
func (l *BaseLogger) Error(msg string, fields ...Field) { l.emit(ErrorLevel, msg, toAttrs(fields)) }
func (l *BaseLogger) Fatal(msg string, fields ...Field) { l.emit(FatalLevel, msg, toAttrs(fields)) }

func (l *BaseLogger) Debugf(msg string, args ...interface{}) { l.emitf(DebugLevel, msg, args) }
func (l *BaseLogger) Infof(msg string, args ...interface{})  { l.emitf(InfoLevel, msg, args) }
func (l *BaseLogger) Warnf(msg string, args ...interface{})  { l.emitf(WarnLevel, msg, args) }
func (l *BaseLogger) Errorf(msg string, args ...interface{}) { l.emitf(ErrorLevel, msg, args) }

func (l *BaseLogger) emitf(level Level, msg string, args []interface{}) {
	if strings.Contains(strings.ReplaceAll(msg, "%%", ""), "%") {
		l.emit(level, fmt.Sprintf(msg, args...), nil)
		return
	}
	l.emit(level, msg, pairsToAttrs(args))
}

func (l *BaseLogger) With(fields ...Field) Logger { return l.derive(fields) }

func (l *BaseLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.derive([]Field{Err(err)})
}

func (l *BaseLogger) WithContext(ctx context.Context) Logger { return l.derive(contextFields(ctx)) }

func (l *BaseLogger) WithComponent(component string) Logger {
	return l.derive([]Field{Component(component)})
}

func (l *BaseLogger) Level() Level { return l.level }

// Slog exposes the logger as a *slog.Logger for libraries that take one.
func (l *BaseLogger) Slog() *slog.Logger { return slog.New(l.h) }

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() Logger {
	return NewLogger(WithLevel(FatalLevel+1), WithOutput(NullOutput{}))
}
