// Package logrus adapts a *logrus.Entry to contentcache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/contentcache"
)

var _ contentcache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New wraps a logger with a component field so cache lines can be filtered out.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "contentcache")}
}

func (l Logger) Debug(msg string, f contentcache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f contentcache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f contentcache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f contentcache.Fields) { l.with(f).Error(msg) }

func (l Logger) with(f contentcache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	// logrus renders errors only under its own ErrorKey
	if err, ok := f["err"].(error); ok {
		rest := make(logrus.Fields, len(f))
		for k, v := range f {
			if k != "err" {
				rest[k] = v
			}
		}
		return l.E.WithError(err).WithFields(rest)
	}
	return l.E.WithFields(logrus.Fields(f))
}
