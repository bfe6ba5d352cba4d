// Package logger builds the root charmbracelet logger shared by the server and the CLI.
package logger

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// New returns a logger writing to w at the given level. Unknown levels fall
// back to info.
func New(w io.Writer, level string) *log.Logger {
	if w == nil {
		w = os.Stdout
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
	})
}

// IsDebug reports whether l emits debug output.
func IsDebug(l *log.Logger) bool {
	return l != nil && l.GetLevel() <= log.DebugLevel
}
