/*package report provides the logging sink used throughout a simulation.
The Reporter interface is injected into the Project and handed down to
domains, so that deep layers can emit progress and warnings without
grabbing a process-wide logger.
*/
package report

import (
	"fmt"
	"io"
	"log"
	"strings"
)

// A Reporter receives progress messages and warnings from the framework
// and from models. Levels indent the message; higher levels are deeper in
// the hierarchy and may be filtered out entirely.
type Reporter interface {
	Log(level int, msg string)
	Logf(level int, format string, args ...interface{})
	Warning(source, msg string)
}

// Logger writes level-indented messages through a stdlib log.Logger. A
// message is dropped when its level exceeds the verbosity.
type Logger struct {
	l         *log.Logger
	verbosity int
}

// New returns a Logger writing to w. Messages with a level above verbosity
// are discarded.
func New(w io.Writer, verbosity int) *Logger {
	return &Logger{l: log.New(w, "", 0), verbosity: verbosity}
}

// Log writes msg indented by its level.
func (r *Logger) Log(level int, msg string) {
	if level > r.verbosity {
		return
	}
	r.l.Print(strings.Repeat("  ", level+1), msg)
}

// Logf formats and writes a message indented by its level.
func (r *Logger) Logf(level int, format string, args ...interface{}) {
	r.Log(level, fmt.Sprintf(format, args...))
}

// Warning writes a warning with its source. Warnings are never filtered.
func (r *Logger) Warning(source, msg string) {
	r.l.Printf("\tWarning: %s\n\t%s", source, msg)
}

// Discard drops everything. It is the default reporter when none is
// injected, and keeps tests quiet.
type Discard struct{}

func (Discard) Log(int, string)                  {}
func (Discard) Logf(int, string, ...interface{}) {}
func (Discard) Warning(string, string)           {}
