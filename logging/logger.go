// Package logging configures the logrus logger shared by the server and
// provides chi request logging.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/warp/donor-crm/config"
)

// Fields represents structured logging fields
type Fields = logrus.Fields

// NewLogger creates a JSON logger at the LOG_LEVEL level.
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	logger.SetLevel(config.GetLogLevel())
	return logger
}

// NewLoggerWithService returns an entry that stamps every line with the
// service name.
func NewLoggerWithService(serviceName string) *logrus.Entry {
	return NewLogger().WithField("service", serviceName)
}

// Discard returns a logger that writes nowhere. Handy in tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
