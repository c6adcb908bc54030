// Package logger builds the process logger.
//
// Logs always go to stderr: stdout belongs to the command loop and to
// detection output.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// TimestampFormat is used by both formatters.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// New returns a logger writing to stderr at level ("debug", "info", ...) in
// format "text" or "json".
func New(level, format string) (*logrus.Logger, error) {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level, format string) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetOutput(w)

	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	l.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: TimestampFormat,
		})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: TimestampFormat})
	default:
		return nil, errors.Errorf("unknown log format %q", format)
	}
	return l, nil
}
