// Package logging owns the process-wide logrus logger used by the CLI.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

// Init configures the logger with the given level and output.
// An unknown level falls back to info; a nil writer means stderr.
func Init(level string, w io.Writer) *logrus.Logger {
	log = New(level, w)
	return log
}

// New creates a logger without touching the shared instance.
func New(level string, w io.Writer) *logrus.Logger {
	l := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if w == nil {
		w = os.Stderr
	}
	l.SetOutput(w)

	return l
}

// Get returns the logger instance, creating a default one if Init was not called.
func Get() *logrus.Logger {
	if log == nil {
		log = New("info", nil)
	}
	return log
}
