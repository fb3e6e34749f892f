// Package gnsslog wires up process-wide structured logging with logrus,
// tagging every entry with the subsystem that emitted it.
//
// Grounded on FengXuebin-gnssgo's verbosity-level trace plumbing
// (Trace/TraceLevel in rtkcmn-style logging across the src/ package),
// replaced here with logrus fields rather than printf trace levels.
package gnsslog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var root = newRoot()

func newRoot() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel sets the process-wide minimum log level by name (e.g. "debug",
// "info", "warn"). Unrecognized names leave the level unchanged.
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return
	}
	root.SetLevel(lvl)
}

// For returns a logger tagged with the given subsystem name (e.g. "spp",
// "kalman", "pipeline"), so every entry it emits carries a "component"
// field.
func For(subsystem string) *logrus.Entry {
	return root.WithField("component", subsystem)
}
