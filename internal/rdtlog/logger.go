// Package rdtlog centralizes the structured logging setup shared by
// the sender and receiver binaries. It is a thin wrapper around
// logrus, colorized to stand in for the original's hand-rolled
// ANSI-coded loggers (Warning/Debug/Info) without losing the
// field-based structure the rest of the corpus's services use.
package rdtlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a logger scoped to component ("sender" or "receiver").
// When verbose is true the level is raised to Debug.
func New(component string, verbose bool) *logrus.Entry {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   true,
	})
	if verbose {
		base.SetLevel(logrus.DebugLevel)
	} else {
		base.SetLevel(logrus.InfoLevel)
	}
	return base.WithField("component", component)
}
