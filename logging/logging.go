// Package logging adapts logrus to the printf style Logger interfaces of
// the accounts and mail packages.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
)

// Logger writes through a logrus entry.
type Logger struct {
	entry *logrus.Entry
}

// Options controls New. Zero values mean info level, text format, stderr.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// New builds a logrus backed Logger.
func New(opts Options) (*Logger, error) {
	l := logrus.New()

	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, oops.
				In("logging").
				Code("LOGGER_CONFIG").
				With("level", opts.Level).
				Wrapf(err, "invalid log level")
		}
		level = parsed
	}
	l.SetLevel(level)

	switch strings.ToLower(opts.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, oops.
			In("logging").
			Code("LOGGER_CONFIG").
			With("format", opts.Format).
			Errorf("unknown log format %q", opts.Format)
	}

	if opts.Output != nil {
		l.SetOutput(opts.Output)
	} else {
		l.SetOutput(os.Stderr)
	}

	return &Logger{entry: logrus.NewEntry(l)}, nil
}

// Named returns a logger tagging every line with component=name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{entry: l.entry.WithField("component", name)}
}

// WithField returns a logger carrying key=value on every line.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) Debug(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...any) { l.entry.Errorf(format, args...) }
