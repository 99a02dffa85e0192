package logger_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/get-eventually/go-eventstore/logger"
)

type recordingLogger struct {
	entries []string
}

func (r *recordingLogger) Debug(msg string, _ ...logger.Field) {
	r.entries = append(r.entries, "debug:"+msg)
}
func (r *recordingLogger) Info(msg string, _ ...logger.Field) {
	r.entries = append(r.entries, "info:"+msg)
}
func (r *recordingLogger) Error(msg string, _ ...logger.Field) {
	r.entries = append(r.entries, "error:"+msg)
}

func TestHelpers(t *testing.T) {
	t.Run("nil logger is a no-op", func(t *testing.T) {
		assert.NotPanics(t, func() {
			logger.Debug(nil, "message")
			logger.Info(nil, "message")
			logger.Error(nil, "message", logger.WithError(errors.New("failed")))
		})
	})

	t.Run("calls are delegated to the logger", func(t *testing.T) {
		l := new(recordingLogger)

		logger.Debug(l, "a")
		logger.Info(l, "b")
		logger.Error(l, "c")

		assert.Equal(t, []string{"debug:a", "info:b", "error:c"}, l.entries)
	})

	t.Run("test logger accepts any field value", func(t *testing.T) {
		l := logger.NewTest(t)

		l.Info("message",
			logger.With("number", 1),
			logger.With("text", "value"),
			logger.WithError(errors.New("failed")),
		)
	})
}
