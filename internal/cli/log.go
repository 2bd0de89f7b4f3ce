package cli

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log adapts logrus to the schemarun.Logger interface and the handful of
// fatal-on-error helpers the CLI commands use.
type Log struct {
	verbose bool
	entry   *logrus.Logger
}

func newLog() *Log {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetOutput(os.Stderr)
	return &Log{entry: l}
}

// Printf prints out a formatted string into the log.
func (l *Log) Printf(format string, v ...any) {
	l.entry.Printf(format, v...)
}

// Println prints out args into the log.
func (l *Log) Println(args ...any) {
	l.entry.Println(args...)
}

// Verbose reports whether verbose print is enabled.
func (l *Log) Verbose() bool {
	return l.verbose
}

func (l *Log) setVerbose(v bool) {
	l.verbose = v
	if v {
		l.entry.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.SetLevel(logrus.InfoLevel)
	}
}

func (l *Log) fatal(args ...any) {
	l.entry.Error(args...)
	os.Exit(1)
}

func (l *Log) fatalErr(err error) {
	l.fatal("error:", err)
}
