package logger

import (
	"strings"
	"testing"
)

var _ Logger = Test{}

// Test is a logger.Logger implementation printing through the test runner,
// so that log lines only show up for failing or verbose tests.
type Test struct{ tb testing.TB }

// NewTest returns a new logger using the provided testing.TB instance.
func NewTest(tb testing.TB) Test {
	return Test{tb: tb}
}

// Debug prints a debug message.
func (t Test) Debug(msg string, fields ...Field) { t.log("debug", msg, fields) }

// Info prints an info message.
func (t Test) Info(msg string, fields ...Field) { t.log("info", msg, fields) }

// Error prints an error message.
func (t Test) Error(msg string, fields ...Field) { t.log("error", msg, fields) }

func (t Test) log(level, msg string, fields []Field) {
	t.tb.Helper()

	var sb strings.Builder
	for _, field := range fields {
		sb.WriteString(" ")
		sb.WriteString(field.Key)
		sb.WriteString("=")
		sb.WriteString(stringify(field.Value))
	}

	t.tb.Logf("[%s] %s%s", level, msg, sb.String())
}
