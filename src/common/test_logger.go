package common

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

// TestLogLevel is the level used by test loggers unless a test asks for
// something chattier.
const TestLogLevel = logrus.InfoLevel

// tWriter sends each formatted log line to t.Log, so output only shows up for
// failing or verbose tests.
type tWriter struct {
	t testing.TB
}

func (w tWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// NewTestLogger returns a logrus Logger that writes through t.Log.
func NewTestLogger(t testing.TB, level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(tWriter{t: t})
	logger.SetLevel(level)
	return logger
}

// NewTestEntry returns a logrus Entry that writes through t.Log, with the
// prefix field set like the production logger.
func NewTestEntry(t testing.TB, level logrus.Level) *logrus.Entry {
	return NewTestLogger(t, level).WithField("prefix", "test")
}
