// Package logging centralizes HDDS's structured logging on top of logrus.
// Every subsystem gets a component-scoped *logrus.Entry instead of calling
// the global log package directly, so fields (domain id, GUID prefix,
// writer id) stay attached across a call chain.
package logging

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu   sync.Mutex
	root = logrus.New()
)

func init() {
	root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	root.SetLevel(logrus.InfoLevel)
}

// SetLevel sets the process-wide minimum level. Intended to be called once,
// at participant construction, per the "global state is a singleton
// initialized at participant construction" design note.
func SetLevel(level logrus.Level) {
	mu.Lock()
	defer mu.Unlock()
	root.SetLevel(level)
}

// For returns a component-scoped logger, e.g. logging.For("reliability").
func For(component string) *logrus.Entry {
	return root.WithField("component", component)
}

// ForGUID scopes a logger to a specific GUID prefix in addition to a
// component, used by discovery and reliability drivers when tracing a
// single participant or endpoint's lifecycle.
func ForGUID(component string, guid fmt.Stringer) *logrus.Entry {
	return root.WithFields(logrus.Fields{"component": component, "guid": guid.String()})
}
