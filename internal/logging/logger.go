// Package logging builds the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing to out (stdout when nil).  Unknown levels
// fall back to info; format "text" selects the human readable formatter,
// anything else emits JSON.
func New(level, format string, out io.Writer) *logrus.Logger {
	if out == nil {
		out = os.Stdout
	}
	l := logrus.New()
	l.SetOutput(out)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if strings.EqualFold(format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return l
}

// Fingerprint shortens a secret-derived value (a token hash) to something
// safe to log while still letting operators correlate entries.
func Fingerprint(hash string) string {
	if len(hash) <= 8 {
		return hash
	}
	return hash[:8]
}
