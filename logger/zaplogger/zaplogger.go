// Package zaplogger adapts go.uber.org/zap to the logger.Logger port.
package zaplogger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/get-eventually/go-eventstore/logger"
)

var _ logger.Logger = &Logger{}

// Logger is a zap wrapper that implements the logger.Logger interface.
type Logger zap.Logger

// Wrap wraps a zap.Logger into a zaplogger.Logger instance.
func Wrap(l *zap.Logger) *Logger {
	return (*Logger)(l)
}

// New builds a new zap.Logger using the provided level, either with the
// production (JSON) or development (console) encoder, and wraps it.
//
// The returned zap.Logger can be used to flush the buffered entries on exit.
func New(level string, development bool) (*Logger, *zap.Logger, error) {
	lvl := zapcore.InfoLevel

	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, nil, fmt.Errorf("zaplogger.New: invalid level, %w", err)
		}

		lvl = parsed
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}

	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("zaplogger.New: failed to build logger, %w", err)
	}

	return Wrap(l), l, nil
}

// Debug prints a debug log message.
func (l *Logger) Debug(msg string, fields ...logger.Field) {
	(*zap.Logger)(l).Debug(msg, zapFields(fields)...)
}

// Info prints an info log message.
func (l *Logger) Info(msg string, fields ...logger.Field) {
	(*zap.Logger)(l).Info(msg, zapFields(fields)...)
}

// Error prints an error log message.
func (l *Logger) Error(msg string, fields ...logger.Field) {
	(*zap.Logger)(l).Error(msg, zapFields(fields)...)
}

func zapFields(fields []logger.Field) []zap.Field {
	result := make([]zap.Field, 0, len(fields))

	for _, field := range fields {
		if err, ok := field.Value.(error); ok {
			result = append(result, zap.NamedError(field.Key, err))
			continue
		}

		result = append(result, zap.Any(field.Key, field.Value))
	}

	return result
}
