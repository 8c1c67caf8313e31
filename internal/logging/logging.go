// Package logging configures the process-wide logrus logger and hands out
// component-scoped entries.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the logging surface every component receives.
type Logger interface {
	logrus.FieldLogger
}

// Setter adjusts the root logger.
type Setter func(*logrus.Logger) error

var root = struct {
	logger *logrus.Logger
	mutex  sync.Mutex
}{
	logger: newRoot(),
}

func newRoot() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// New returns a logger tagged with the component name.
func New(component string, setters ...Setter) Logger {
	for _, setter := range setters {
		if err := Set(setter); err != nil {
			root.logger.WithError(err).Warn("unable to apply logger setting")
		}
	}
	return root.logger.WithField("component", component)
}

// Set applies a setter to the root logger.
func Set(setter Setter) error {
	root.mutex.Lock()
	defer root.mutex.Unlock()
	return setter(root.logger)
}

// Level sets the minimum level. An unparsable level falls back to info.
func Level(lvl string) Setter {
	l, err := logrus.ParseLevel(lvl)
	return func(r *logrus.Logger) error {
		if err != nil {
			r.SetLevel(logrus.InfoLevel)
			return err
		}
		r.SetLevel(l)
		return nil
	}
}

// JSON switches the root logger to JSON output.
func JSON(enabled bool) Setter {
	return func(r *logrus.Logger) error {
		if enabled {
			r.SetFormatter(&logrus.JSONFormatter{})
		}
		return nil
	}
}

// Output redirects log output.
func Output(w io.Writer) Setter {
	return func(r *logrus.Logger) error {
		r.SetOutput(w)
		return nil
	}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
