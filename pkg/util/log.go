package util

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is shared by every package in the daemon. Configure it once at
// startup with ConfigureLogging.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(os.Stderr)
	Logger.SetLevel(logrus.InfoLevel)
	Logger.SetFormatter(textFormatter())
}

func textFormatter() logrus.Formatter {
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	}
}

// ConfigureLogging sets the level and switches between text and JSON output.
func ConfigureLogging(level string, json bool) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	Logger.SetLevel(lvl)
	if json {
		Logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05Z07:00",
		})
	} else {
		Logger.SetFormatter(textFormatter())
	}
	return nil
}

// SetLogOutput redirects log output, mostly for tests.
func SetLogOutput(w io.Writer) {
	Logger.SetOutput(w)
}

// WithField returns an entry carrying one field.
func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

// WithFields returns an entry carrying several fields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Logger.WithFields(fields)
}

// WithTable tags an entry with an APPL_DB table name.
func WithTable(table string) *logrus.Entry {
	return Logger.WithField("table", table)
}

// WithRoute tags an entry with a route key.
func WithRoute(key string) *logrus.Entry {
	return Logger.WithField("route", key)
}
