package logs

import (
	"github.com/Trinoooo/tcpmux/consts"
	"go.uber.org/zap"
)

// ComponentLogger tags every entry with the component that wrote it.
type ComponentLogger struct {
	l *zap.Logger
}

func With(component string, fields ...zap.Field) *ComponentLogger {
	fields = append([]zap.Field{zap.String(consts.LogFieldComponent, component)}, fields...)
	return &ComponentLogger{l: Logger.With(fields...)}
}

func (cl *ComponentLogger) With(fields ...zap.Field) *ComponentLogger {
	return &ComponentLogger{l: cl.l.With(fields...)}
}

func (cl *ComponentLogger) Debug(msg string, fields ...zap.Field) {
	cl.l.Debug(msg, fields...)
}

func (cl *ComponentLogger) Info(msg string, fields ...zap.Field) {
	cl.l.Info(msg, fields...)
}

func (cl *ComponentLogger) Warn(msg string, fields ...zap.Field) {
	cl.l.Warn(msg, fields...)
}

func (cl *ComponentLogger) Error(msg string, fields ...zap.Field) {
	cl.l.Error(msg, fields...)
}

var appLogger = With(consts.AppName)

func Debug(msg string, fields ...zap.Field) {
	appLogger.l.Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	appLogger.l.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	appLogger.l.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	appLogger.l.Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	appLogger.l.Fatal(msg, fields...)
}
